package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"evault/internal/backend"
	"evault/internal/session"
	"evault/pkg/strutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
)

// ParseOutputFormat validates the -o flag.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatTable:
		return OutputFormatTable, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table or json)", s)
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// PrintRepositories renders the repository list.
func PrintRepositories(w io.Writer, repos []backend.Repository, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSON(w, repos)
	}
	if len(repos) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No repositories found"))
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("ID"),
		text.FgHiCyan.Sprint("REPOSITORY"),
		text.FgHiCyan.Sprint("VISIBILITY"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, r := range repos {
		visibility := text.FgGreen.Sprint("public")
		if r.Private {
			visibility = text.FgYellow.Sprint("private")
		}
		desc := strutil.Summary(strutil.Deref(r.Description), strutil.TableDescriptionLen)
		t.AppendRow(table.Row{r.ID, r.FullName, visibility, desc})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d", len(repos)), "", ""})
	t.Render()
	return nil
}

// RepositoryStatusText describes a vault check result.
func RepositoryStatusText(code int) string {
	switch code {
	case http.StatusOK:
		return text.FgGreen.Sprint("Vault exists")
	case http.StatusNotFound:
		return text.FgYellow.Sprint("No vault yet")
	case http.StatusForbidden:
		return text.FgRed.Sprint("Not repository owner")
	default:
		return text.FgHiBlack.Sprint("Unknown (" + strconv.Itoa(code) + ")")
	}
}

// RepositoryCheck is one row of `evault repos check`.
type RepositoryCheck struct {
	Remote   string `json:"remote,omitempty"`
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Status   int    `json:"status"`
}

// PrintRepositoryChecks renders check results.
func PrintRepositoryChecks(w io.Writer, checks []RepositoryCheck, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSON(w, checks)
	}
	t := newTable(w)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("REMOTE"),
		text.FgHiCyan.Sprint("REPOSITORY"),
		text.FgHiCyan.Sprint("STATUS"),
	})
	for _, c := range checks {
		remote := c.Remote
		if remote == "" {
			remote = "-"
		}
		status := text.FgHiBlack.Sprint("Not in your repositories")
		if c.Status != 0 {
			status = RepositoryStatusText(c.Status)
		}
		t.AppendRow(table.Row{remote, c.FullName, status})
	}
	t.Render()
	return nil
}

// PrintIdentity renders the signed-in user.
func PrintIdentity(w io.Writer, id *session.Identity, format OutputFormat) error {
	if format == OutputFormatJSON {
		return writeJSON(w, id)
	}
	fmt.Fprintf(w, "  Login:     %s\n", text.Bold.Sprint(id.Login))
	if id.Name != "" {
		fmt.Fprintf(w, "  Name:      %s\n", id.Name)
	}
	if id.Email != "" {
		fmt.Fprintf(w, "  Email:     %s\n", id.Email)
	}
	fmt.Fprintf(w, "  ID:        %d\n", id.ID)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
