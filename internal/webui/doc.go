// Package webui is the local web front served by `evault serve`.
//
// It implements the web device type: every browser request is one page
// lifecycle with its own backend client, cookie jar, credential store and
// navigator. Navigations recorded by the session core during the request
// become redirects, and the backend session cookie is relayed between the
// browser and the backend.
//
// Pages are rendered from embedded html/template files with the sprig
// function map. A templates directory may override them and is reloaded
// when its files change.
package webui
