package devserver

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var overlayTemplate = template.Must(template.New("overlay").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Build failed</title>
<style>
body { margin: 0; background: #1e1e1e; color: #eee; font-family: ui-monospace, Menlo, monospace; }
header { padding: 16px 24px; background: #b3261e; font-weight: bold; }
pre { margin: 16px 24px; padding: 16px; background: #2b2b2b; white-space: pre-wrap; }
p { margin: 16px 24px; color: #aaa; }
</style>
</head>
<body>
<header>Build failed</header>
{{range .Messages}}<pre>{{.}}</pre>
{{end}}
{{if .HasGoodBuild}}<p>The last successful build is still on disk. This page reloads when the build is fixed.</p>
{{else}}<p>This page reloads when the build succeeds.</p>
{{end}}
<script src="/livereload.js"{{if .Build}} data-build="{{.Build}}"{{end}}></script>
</body>
</html>
`))

func writeOverlay(w http.ResponseWriter, err error, hasGoodBuild bool, build string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusInternalServerError)

	data := map[string]any{
		"Messages":     messages(err),
		"HasGoodBuild": hasGoodBuild,
		"Build":        build,
	}
	if err := overlayTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to render overlay")
	}
}
