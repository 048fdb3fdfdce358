// Package templates holds the HTML fragments swapped in by HTMX.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissable error box with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		fmt.Fprintf(&b, `<p class="alert-code">Code : %s</p>`, templ.EscapeString(code))
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportSummary renders the outcome of one import with its first row errors.
func ImportSummary(res core.ImportResult, maxErrors int) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<section class="import-summary status-%s" id="import-%s">`,
			templ.EscapeString(string(res.Status)), templ.EscapeString(res.ImportID))
		fmt.Fprintf(&b, `<h3>%s</h3>`, templ.EscapeString(res.FileName))
		fmt.Fprintf(&b, `<p>%s : %d importés, %d en erreur sur %d lignes</p>`,
			statusLabel(res.Status), res.Imported, res.Failed, res.TotalRows)
		switch {
		case res.Message != "":
			fmt.Fprintf(&b, `<p class="import-error">%s</p>`, templ.EscapeString(res.Message))
		case res.Error != "":
			fmt.Fprintf(&b, `<p class="import-error">%s</p>`, templ.EscapeString(res.Error))
		}
		if res.Ranked {
			b.WriteString(`<p class="import-ranked">Classements en cours de calcul</p>`)
		}

		if n := len(res.Errors); n > 0 {
			b.WriteString(`<ul class="row-errors">`)
			for i, e := range res.Errors {
				if maxErrors > 0 && i == maxErrors {
					fmt.Fprintf(&b, `<li>… et %d autres</li>`, n-maxErrors)
					break
				}
				if e.Row > 0 {
					fmt.Fprintf(&b, `<li>Ligne %d : %s</li>`, e.Row, templ.EscapeString(e.Error))
				} else {
					fmt.Fprintf(&b, `<li>%s</li>`, templ.EscapeString(e.Error))
				}
			}
			b.WriteString(`</ul>`)
			fmt.Fprintf(&b, `<a href="/api/imports/%s/errors.csv">Télécharger les erreurs</a>`,
				templ.EscapeString(res.ImportID))
		}
		b.WriteString(`</section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportHistory renders the import table of a race, newest first.
func ImportHistory(records []core.ImportRecord) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		if len(records) == 0 {
			b.WriteString(`<p class="empty">Aucun import pour cette course</p>`)
			_, err := io.WriteString(w, b.String())
			return err
		}

		b.WriteString(`<table class="import-history"><thead><tr>`)
		b.WriteString(`<th>Date</th><th>Fichier</th><th>Format</th><th>Statut</th><th>Importés</th><th>Erreurs</th>`)
		b.WriteString(`</tr></thead><tbody>`)
		for _, rec := range records {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td></tr>`,
				rec.CreatedAt.Format("02/01/2006 15:04"),
				templ.EscapeString(rec.FileName),
				templ.EscapeString(string(rec.Format)),
				statusLabel(rec.Status),
				rec.Imported,
				rec.Failed,
			)
		}
		b.WriteString(`</tbody></table>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func statusLabel(p core.ImportPhase) string {
	switch p {
	case core.PhaseComplete:
		return "Terminé"
	case core.PhaseFailed:
		return "Échec"
	case core.PhaseCancelled:
		return "Annulé"
	default:
		return "En cours"
	}
}
