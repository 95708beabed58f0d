package api

// faviconSVG keeps browsers from logging 404s on the icon probe.
const faviconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><text y=".9em" font-size="90">🌊</text></svg>`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>See</title>
    <link rel="icon" href="/favicon.ico">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Inter', -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .hero { display: flex; flex-direction: column; align-items: center; padding: 4rem 1rem 2rem; }
        .hero h1 { font-size: 3rem; background: linear-gradient(135deg, #38bdf8, #818cf8); background-clip: text; -webkit-background-clip: text; -webkit-text-fill-color: transparent; }
        .hero p { color: #64748b; margin-top: 0.5rem; }
        .search { display: flex; gap: 0.5rem; width: min(640px, 90vw); margin: 2rem auto 0; }
        .search input { flex: 1; padding: 0.75rem 1rem; border-radius: 12px; border: 1px solid #334155; background: #1e293b; color: #f1f5f9; font-size: 1rem; outline: none; }
        .search input:focus { border-color: #38bdf8; }
        .search button { padding: 0.75rem 1.5rem; border-radius: 12px; border: none; background: linear-gradient(135deg, #38bdf8, #818cf8); color: #0f172a; font-weight: 700; cursor: pointer; }
        .meta { width: min(640px, 90vw); margin: 1rem auto 0; color: #64748b; font-size: 0.875rem; }
        .results { width: min(640px, 90vw); margin: 1rem auto 3rem; display: flex; flex-direction: column; gap: 1rem; }
        .result { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1rem 1.25rem; }
        .result a { color: #38bdf8; text-decoration: none; font-size: 1.05rem; font-weight: 600; }
        .result a:hover { text-decoration: underline; }
        .result .url { color: #4ade80; font-size: 0.8rem; margin-top: 0.25rem; word-break: break-all; }
        .result .desc { color: #94a3b8; font-size: 0.9rem; margin-top: 0.5rem; }
        .result .tags { margin-top: 0.5rem; font-size: 0.75rem; color: #64748b; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
    </style>
</head>
<body>
    <div class="hero">
        <h1>🌊 See</h1>
        <p>Privacy-preserving meta search</p>
        <form class="search" id="form">
            <input type="text" id="q" placeholder="Search the open web…" autofocus autocomplete="off">
            <button type="submit">Search</button>
        </form>
    </div>
    <div class="meta" id="meta"></div>
    <div class="results" id="results"></div>
    <div class="footer">See — your queries stay yours</div>
    <script>
        const form = document.getElementById('form');
        const meta = document.getElementById('meta');
        const results = document.getElementById('results');
        form.addEventListener('submit', async (ev) => {
            ev.preventDefault();
            const q = document.getElementById('q').value.trim();
            if (!q) return;
            meta.textContent = 'Searching…';
            results.innerHTML = '';
            try {
                const r = await fetch('/api/search?q=' + encodeURIComponent(q) + '&page_size=20');
                if (!r.ok) { const e = await r.json(); meta.textContent = e.message || e.code || 'search failed'; return; }
                const d = await r.json();
                meta.textContent = d.total_count + ' results from ' + (d.engines_used || []).join(', ') +
                    ' in ' + d.query_time_ms + ' ms' + (d.cached ? ' (cached)' : '');
                for (const item of d.results || []) {
                    const div = document.createElement('div');
                    div.className = 'result';
                    const a = document.createElement('a');
                    a.href = item.url; a.textContent = item.title; a.rel = 'noopener noreferrer';
                    const url = document.createElement('div');
                    url.className = 'url'; url.textContent = item.url;
                    const desc = document.createElement('div');
                    desc.className = 'desc'; desc.textContent = item.description || '';
                    const tags = document.createElement('div');
                    tags.className = 'tags'; tags.textContent = item.engine + ' · ' + item.score.toFixed(2);
                    div.append(a, url, desc, tags);
                    results.append(div);
                }
            } catch (e) {
                meta.textContent = 'search failed';
            }
        });
    </script>
</body>
</html>`
