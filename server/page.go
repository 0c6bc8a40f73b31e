package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/DachengChen/obsql/composer"
)

const (
	schemaSlot      = "\x00schema\x00"
	descriptionSlot = "\x00description\x00"
)

type PageData struct {
	Title string
	// PromptTemplate is the full prompt with slot markers where the form
	// values go; the page substitutes them before posting.
	PromptTemplate  string
	SchemaSlot      string
	DescriptionSlot string
	SnippetMode     string
	ToastMillis     int
}

func newPageData(mode composer.Mode) PageData {
	return PageData{
		Title:           "OceanBase SQL generator",
		PromptTemplate:  mode.Prompt(composer.FormState{Schema: schemaSlot, Description: descriptionSlot}),
		SchemaSlot:      schemaSlot,
		DescriptionSlot: descriptionSlot,
		SnippetMode:     mode.Name,
		ToastMillis:     2000,
	}
}

var pageTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>{{.Title}}</title>
    <style>
      :root {
        --text: #0f172a;
        --muted: #64748b;
        --border: #d1d5db;
        --mono: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", monospace;
        --sans: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial;
      }
      * { box-sizing: border-box; }
      body { margin: 0; font-family: var(--sans); color: var(--text); background: #fff; }
      main { max-width: 40rem; margin: 0 auto; padding: 4rem 1rem; }
      h1 { font-size: 2.5rem; text-align: center; margin: 0 0 2.5rem; }
      h2 { font-size: 1.8rem; text-align: center; }
      label { display: block; font-weight: 500; margin: 1.5rem 0 0.75rem; }
      textarea { width: 100%; min-height: 6rem; padding: 0.6rem; border: 1px solid var(--border); border-radius: 0.4rem; font-family: var(--mono); }
      button { width: 100%; margin-top: 2rem; padding: 0.6rem 1rem; border: 0; border-radius: 0.75rem; background: #000; color: #fff; font-weight: 500; cursor: pointer; }
      button:disabled { opacity: 0.6; cursor: wait; }
      #snippets { display: flex; flex-direction: column; gap: 2rem; margin-top: 2.5rem; }
      .snippet { white-space: pre-wrap; font-family: var(--mono); padding: 1rem; border: 1px solid var(--border); border-radius: 0.75rem; box-shadow: 0 2px 6px rgba(0,0,0,0.08); cursor: copy; }
      .snippet:hover { background: #f3f4f6; }
      #toast { position: fixed; top: 1rem; left: 50%; transform: translateX(-50%); padding: 0.6rem 1rem; border-radius: 0.5rem; background: #fff; box-shadow: 0 4px 14px rgba(0,0,0,0.15); display: none; }
      #toast.error { color: #b91c1c; }
    </style>
  </head>
  <body>
    <div id="toast" role="status"></div>
    <main>
      <h1>Generate Your OceanBase SQL</h1>
      <form id="form">
        <label for="schema">1. Provide your schema here.</label>
        <textarea id="schema" rows="4" placeholder="e.g. table: Users (UserID INT PRIMARY KEY AUTO_INCREMENT,FirstName VARCHAR(50) NOT NULL,LastName VARCHAR(50) NOT NULL,Email VARCHAR(100) NOT NULL UNIQUE,Password VARCHAR(255) NOT NULL)."></textarea>
        <label for="description">2. Describe what you would like to query.</label>
        <textarea id="description" rows="4" placeholder="e.g. Get 5 users whose first name contains 'Amber', case-insensitive."></textarea>
        <button id="compose" type="submit">Compose your OceanBase SQL Query &rarr;</button>
      </form>
      <section id="results" hidden>
        <h2>Your Queries</h2>
        <div id="snippets"></div>
      </section>
    </main>
    <script>
      (function () {
        const promptTemplate = {{.PromptTemplate}};
        const schemaSlot = {{.SchemaSlot}};
        const descriptionSlot = {{.DescriptionSlot}};
        const snippetMode = {{.SnippetMode}};
        const toastMillis = {{.ToastMillis}};

        const form = document.getElementById("form");
        const button = document.getElementById("compose");
        const results = document.getElementById("results");
        const snippets = document.getElementById("snippets");
        const toastEl = document.getElementById("toast");
        let toastTimer = null;
        let generation = 0;
        let inflight = null;

        function toast(message, isError) {
          toastEl.textContent = message;
          toastEl.className = isError ? "error" : "";
          toastEl.style.display = "block";
          clearTimeout(toastTimer);
          toastTimer = setTimeout(function () { toastEl.style.display = "none"; }, toastMillis);
        }

        function buildPrompt(schema, description) {
          return promptTemplate.split(schemaSlot).join(schema).split(descriptionSlot).join(description);
        }

        function partition(buffer) {
          if (snippetMode === "delimited") {
            return buffer.split(/\r?\n/).reduce(function (acc, line) {
              if (line.trim() === "====") { acc.push(""); } else { acc[acc.length - 1] += line + "\n"; }
              return acc;
            }, [""]).map(function (s) { return s.trim(); }).filter(function (s) { return s !== ""; });
          }
          return buffer.substring(buffer.indexOf("1") + 3).split("2.");
        }

        function render(buffer) {
          results.hidden = buffer === "";
          snippets.replaceChildren();
          if (buffer === "") { return; }
          partition(buffer).forEach(function (text) {
            const div = document.createElement("div");
            div.className = "snippet";
            div.textContent = text;
            div.addEventListener("click", function () {
              navigator.clipboard.writeText(text).then(
                function () { toast("✂️ SQL copied to clipboard", false); },
                function (err) { toast("copy failed: " + err, true); });
            });
            snippets.appendChild(div);
          });
        }

        function setBusy(busy) {
          button.disabled = busy;
          button.textContent = busy ? "…" : "Compose your OceanBase SQL Query →";
        }

        async function composeQuery() {
          const gen = ++generation;
          if (inflight) { inflight.abort(); }
          const controller = new AbortController();
          inflight = controller;

          const prompt = buildPrompt(
            document.getElementById("schema").value,
            document.getElementById("description").value);
          let buffer = "";
          render(buffer);
          setBusy(true);
          try {
            const response = await fetch("/api/generate", {
              method: "POST",
              headers: { "Content-Type": "application/json" },
              body: JSON.stringify({ prompt: prompt }),
              signal: controller.signal,
            });
            if (!response.ok) {
              let message = response.statusText;
              try { message = (await response.json()).message || message; } catch (_) {}
              throw new Error(message);
            }
            if (!response.body) { throw new Error("empty response body"); }
            const reader = response.body.getReader();
            const decoder = new TextDecoder();
            for (;;) {
              const { value, done } = await reader.read();
              if (gen !== generation) { return; }
              buffer += decoder.decode(value, { stream: !done });
              render(buffer);
              if (done) { break; }
            }
          } catch (err) {
            if (gen === generation && err.name !== "AbortError") { toast(String(err.message || err), true); }
          } finally {
            if (gen === generation) { setBusy(false); inflight = null; }
          }
        }

        form.addEventListener("submit", function (e) {
          e.preventDefault();
          composeQuery();
        });
      })();
    </script>
  </body>
</html>
`))

func RenderPage(data PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func handlePage(page []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(page)
	}
}
