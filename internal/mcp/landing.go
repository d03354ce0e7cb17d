package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Exam Prep Question Bank</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #f8fafc; color: #0f172a; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .card { max-width: 640px; width: 90%; background: #ffffff; border: 1px solid #e2e8f0; border-radius: 12px; padding: 2.5rem; }
  h1 { font-size: 1.6rem; margin-bottom: 0.5rem; }
  .subtitle { color: #475569; margin-bottom: 1.75rem; }
  .section { margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.5rem; }
  .endpoint { font-family: "SF Mono", Menlo, monospace; font-size: 0.9rem; color: #4338ca; }
  p { margin-bottom: 0.35rem; }
</style>
</head>
<body>
<div class="card">
  <h1>Exam Prep Question Bank</h1>
  <p class="subtitle">Questions and figures extracted from study PDFs, searchable by topic and subject, with multiple-choice generation.</p>

  <div class="section">
    <div class="section-title">HTTP API</div>
    <p><span class="endpoint">GET /api/health</span> &middot; health check</p>
    <p><span class="endpoint">POST /api/upload-pdf</span> &middot; add a PDF or markdown file</p>
    <p><span class="endpoint">POST /api/retrieve-questions</span> &middot; search stored questions</p>
    <p><span class="endpoint">POST /api/generate-questions</span> &middot; generate MCQs</p>
    <p><span class="endpoint">POST /api/evaluate</span> &middot; score answers</p>
    <p><span class="endpoint">GET /api/stats</span> and <span class="endpoint">GET /api/subjects</span></p>
    <p><span class="endpoint">GET /metrics</span> &middot; Prometheus metrics</p>
  </div>

  <div class="section">
    <div class="section-title">MCP</div>
    <p><span class="endpoint">/mcp</span> &middot; Streamable HTTP with the search_questions, search_figures, generate_mcqs and get_index_stats tools</p>
  </div>
</div>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
