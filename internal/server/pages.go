package server

import (
	"html/template"
	"net/http"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 32em; margin: 4em auto; padding: 0 1em; text-align: center; }
h1 { font-size: 1.4em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p>You can close this window.</p>
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
}

func writeSuccessPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTemplate.Execute(w, pageData{
		Title:   "Calendar connected ✅",
		Message: "Your Google Calendar is now linked. Head back to the chat to start adding events.",
	})
}

func writeErrorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, pageData{
		Title:   "Authorization failed",
		Message: message,
	})
}
