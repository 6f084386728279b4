package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"evault/internal/backend"
	"evault/internal/cli"
	"evault/internal/gitremote"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentChecks bounds parallel repository checks in `repos check`.
const maxConcurrentChecks = 4

var reposOutput string

// readPassword prompts without echo. It is replaced in tests.
var readPassword = func(prompt string) (string, error) {
	rl, err := readline.NewEx(&readline.Config{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to open terminal: %w", err)
	}
	defer rl.Close()

	b, err := rl.ReadPassword(prompt)
	if errors.Is(err, readline.ErrInterrupt) {
		return "", errors.New("cancelled")
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// workingDir is replaced in tests.
var workingDir = os.Getwd

var reposCmd = &cobra.Command{
	Use:     "repos",
	Aliases: []string{"repo", "repositories"},
	Short:   "Work with the vaults of your repositories",
	Long: `List your GitHub repositories, check whether they have a vault and
create new vaults.

Examples:
  evault repos list                    # Repositories of the signed-in user
  evault repos check                   # Check the remotes of the current git checkout
  evault repos check 42 octo/api       # Check one repository
  evault repos create 42 octo/api      # Create a vault (prompts for a password)`,
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your repositories",
	Args:  cobra.NoArgs,
	RunE:  runReposList,
}

var reposCheckCmd = &cobra.Command{
	Use:   "check [<id> <owner/repo>]",
	Short: "Check whether repositories have a vault",
	Long: `Check whether repositories have a vault and whether you own them.

Without arguments the remotes in .git/config of the current directory are
matched against your repositories and each match is checked.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return errors.New("expected no arguments or <id> <owner/repo>")
		}
		return nil
	},
	RunE: runReposCheck,
}

var reposCreateCmd = &cobra.Command{
	Use:   "create <id> <owner/repo>",
	Short: "Create a vault for a repository you own",
	Args:  cobra.ExactArgs(2),
	RunE:  runReposCreate,
}

func init() {
	rootCmd.AddCommand(reposCmd)
	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposCheckCmd)
	reposCmd.AddCommand(reposCreateCmd)

	reposCmd.PersistentFlags().StringVarP(&reposOutput, "output", "o", "table", "Output format: table or json")
}

// authedSession returns a session whose token the backend has accepted.
func authedSession(ctx context.Context) (*cliSession, error) {
	s, err := newSessionFunc()
	if err != nil {
		return nil, err
	}
	if err := s.requireAuth(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func parseRepositoryArgs(args []string) (int64, string, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid repository id %q", args[0])
	}
	if !backend.ValidRepositoryName(args[1]) {
		return 0, "", fmt.Errorf("invalid repository name %q, expected owner/repo", args[1])
	}
	return id, args[1], nil
}

func runReposList(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(reposOutput)
	if err != nil {
		return err
	}
	s, err := authedSession(cmd.Context())
	if err != nil {
		return err
	}
	repos, err := s.client.Repositories(cmd.Context())
	if err != nil {
		return s.wrapError(err)
	}
	return cli.PrintRepositories(cmd.OutOrStdout(), repos, format)
}

func runReposCheck(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(reposOutput)
	if err != nil {
		return err
	}

	var checks []cli.RepositoryCheck
	if len(args) == 2 {
		id, name, err := parseRepositoryArgs(args)
		if err != nil {
			return err
		}
		checks = []cli.RepositoryCheck{{ID: id, FullName: name}}
	} else {
		dir, err := workingDir()
		if err != nil {
			return err
		}
		remotes, err := gitremote.Detect(dir)
		if err != nil {
			return err
		}
		for _, r := range remotes {
			checks = append(checks, cli.RepositoryCheck{Remote: r.Name, FullName: r.FullName})
		}
	}

	s, err := authedSession(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if len(args) == 0 {
		// remotes carry names only; ids come from the user's repositories
		repos, err := s.client.Repositories(ctx)
		if err != nil {
			return s.wrapError(err)
		}
		ids := make(map[string]int64, len(repos))
		for _, r := range repos {
			ids[strings.ToLower(r.FullName)] = r.ID
		}
		for i := range checks {
			checks[i].ID = ids[strings.ToLower(checks[i].FullName)]
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i := range checks {
		if checks[i].ID == 0 {
			continue
		}
		g.Go(func() error {
			status, err := s.client.RepositoryStatus(gctx, checks[i].ID, checks[i].FullName)
			if err != nil {
				return err
			}
			checks[i].Status = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.wrapError(err)
	}
	return cli.PrintRepositoryChecks(cmd.OutOrStdout(), checks, format)
}

func runReposCreate(cmd *cobra.Command, args []string) error {
	id, name, err := parseRepositoryArgs(args)
	if err != nil {
		return err
	}
	s, err := authedSession(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	status, err := s.client.RepositoryStatus(ctx, id, name)
	if err != nil {
		return s.wrapError(err)
	}
	switch status {
	case http.StatusOK:
		return fmt.Errorf("%s already has a vault", name)
	case http.StatusForbidden:
		return fmt.Errorf("only the owner of %s can create its vault", name)
	}

	password, err := readPassword("Vault password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("a vault password is required")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	if err := s.client.CreateRepository(ctx, backend.NewRepository{ID: id, FullName: name, Password: password}); err != nil {
		return s.wrapError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Vault created for %s\n", text.FgGreen.Sprint("✓"), name)
	return nil
}
