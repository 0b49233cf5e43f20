package server

import (
	"html/template"
	"net/http"

	"mariorl/shader"
)

// indexTemplate is the single-page dashboard: the live stream, session
// controls, shader toggles, and the websocket stats readout.
const indexTemplate = `<!DOCTYPE html>
<html>
<head>
<title>mariorl</title>
<style>
  body { font-family: monospace; background: #1a1a2e; color: #e0e0e0; margin: 2em; }
  img#stream { image-rendering: pixelated; width: 512px; border: 2px solid #444; }
  button { margin-right: 0.5em; }
  #stats { margin-top: 1em; white-space: pre; color: #8f8; }
  .shaders label { margin-right: 1em; }
</style>
</head>
<body>
<h2>mariorl training dashboard</h2>
<img id="stream" src="/stream" alt="live stream"/>
<div>
  <button onclick="post('/api/training/start')">start training</button>
  <button onclick="post('/api/training/stop')">stop training</button>
</div>
<div class="shaders">
{{range .Stages}}  <label><input type="checkbox" onchange="setShader('{{.}}', this.checked)"/>{{.}}</label>
{{end}}
  <button onclick="setAllShaders(true)">all on</button>
  <button onclick="setAllShaders(false)">all off</button>
</div>
<div id="stats">connecting...</div>
<script>
function post(url) { fetch(url, {method: "POST"}); }
function setShader(name, enabled) {
  fetch("/api/shaders/" + name, {method: "PUT", body: JSON.stringify({enabled: enabled})});
}
function setAllShaders(enabled) {
  fetch("/api/shaders", {method: "PUT", body: JSON.stringify({enabled: enabled})});
}
const sock = new WebSocket("ws://" + location.host + "/ws/stats");
sock.onmessage = (ev) => {
  document.getElementById("stats").textContent = JSON.stringify(JSON.parse(ev.data), null, 2);
};
sock.onclose = () => {
  document.getElementById("stats").textContent = "stats feed closed";
};
</script>
</body>
</html>
`

var indexPage = template.Must(template.New("index").Parse(indexTemplate))

func (server *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	data := struct{ Stages []string }{Stages: shader.StageNames()}
	if err := indexPage.Execute(w, data); err != nil {
		server.log.Printf("index render failed: %v", err)
	}
}
