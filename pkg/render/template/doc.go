// Package template wraps a pongo2 template set behind a small engine used by
// the HTML renderer. Templates are loaded from an fs.FS, optionally shadowed
// by a directory on disk so deployments can override single partials.
package template
