package server

// ViewerHTML is the embedded single-page viewer. It hosts rrweb-player,
// drives the JSON API and follows mount/destroy messages over WebSocket.
const ViewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>rrview</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/rrweb-player@1.0.0-alpha.4/dist/style.css">
<script src="https://cdn.jsdelivr.net/npm/rrweb-player@1.0.0-alpha.4/dist/index.js"></script>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, monospace;
    background: #0d1117; color: #c9d1d9; padding: 20px;
  }
  h1 { color: #58a6ff; margin-bottom: 4px; font-size: 1.5em; }
  .subtitle { color: #8b949e; margin-bottom: 20px; font-size: 0.9em; }
  .layout { display: grid; grid-template-columns: 320px 1fr; gap: 20px; }
  .panel {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    padding: 16px; margin-bottom: 16px;
  }
  .tabs { display: flex; gap: 8px; margin-bottom: 12px; }
  .tab, button {
    background: #21262d; color: #c9d1d9; border: 1px solid #30363d;
    padding: 6px 14px; border-radius: 4px; cursor: pointer; font-size: 0.85em;
  }
  .tab.active { background: #1f6feb; border-color: #1f6feb; color: #fff; }
  button:disabled { opacity: 0.5; cursor: wait; }
  input[type=text] {
    width: 100%; padding: 6px 8px; margin-bottom: 8px; border-radius: 4px;
    border: 1px solid #30363d; background: #0d1117; color: #c9d1d9;
  }
  .list { list-style: none; margin-top: 12px; max-height: 300px; overflow-y: auto; }
  .list li {
    padding: 6px 8px; border-bottom: 1px solid #21262d; cursor: pointer;
    font-size: 0.85em; word-break: break-all;
  }
  .list li:hover { background: #1c2128; }
  .list li.active { color: #3fb950; font-weight: 600; }
  .list .meta { color: #8b949e; font-size: 0.8em; }
  .error { color: #f85149; font-size: 0.85em; margin-top: 8px; min-height: 1em; }
  .hidden { display: none; }
  .status-value.connected { color: #3fb950; }
  .status-value.disconnected { color: #f85149; }
  #failure {
    background: #3d1f20; border: 1px solid #f85149; border-radius: 6px;
    padding: 16px; color: #f85149;
  }
  #failure p { margin-bottom: 10px; }
  .empty-state { text-align: center; padding: 60px 20px; color: #8b949e; }
</style>
</head>
<body>
<h1>rrview</h1>
<p class="subtitle">rrweb session replay viewer &middot; <span class="status-value disconnected" id="conn-status">Disconnected</span></p>

<div class="layout">
  <div>
    <div class="panel">
      <div class="tabs">
        <button class="tab" data-mode="file" onclick="setMode('file')">File</button>
        <button class="tab" data-mode="url" onclick="setMode('url')">URL</button>
      </div>

      <div id="panel-file">
        <input type="file" id="file-input" accept=".json,application/json">
        <div class="error" id="file-error"></div>
        <ul class="list" id="file-list"></ul>
      </div>

      <div id="panel-url" class="hidden">
        <input type="text" id="url-input" placeholder="https://example.com/recording.json">
        <button id="url-btn" onclick="loadURL()">Load</button>
        <div class="error" id="url-error"></div>
        <ul class="list" id="url-list"></ul>
      </div>
    </div>
  </div>

  <div>
    <div id="failure" class="hidden">
      <p>The player could not render this recording.</p>
      <p id="failure-message"></p>
      <button onclick="resetPlayer()">Try again</button>
    </div>
    <div id="player">
      <div class="empty-state">
        <div class="icon">&#9654;</div>
        <p>Upload a recording or load one from a URL.</p>
      </div>
    </div>
  </div>
</div>

<script>
let ws = null;
let current = null;
let mode = 'file';

function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  ws = new WebSocket(proto + '//' + location.host + '/ws');

  ws.onopen = () => {
    document.getElementById('conn-status').textContent = 'Connected';
    document.getElementById('conn-status').className = 'status-value connected';
  };

  ws.onclose = () => {
    document.getElementById('conn-status').textContent = 'Disconnected';
    document.getElementById('conn-status').className = 'status-value disconnected';
    setTimeout(connect, 2000);
  };

  ws.onmessage = (e) => handle(JSON.parse(e.data));
}

function handle(msg) {
  switch (msg.op) {
  case 'mount': mount(msg); break;
  case 'destroy': if (current && current.id === msg.instance) unmount(); break;
  case 'failed': unmount(); showFailure(msg.message); break;
  case 'reset': hideFailure(); break;
  }
}

function mount(msg) {
  unmount();
  hideFailure();
  const target = document.getElementById('player');
  target.innerHTML = '';
  try {
    const p = new rrwebPlayer({
      target: target,
      props: { events: msg.events, autoPlay: msg.autoPlay !== false },
    });
    current = { id: msg.instance, player: p };
  } catch (err) {
    current = null;
    report(msg.instance, err);
  }
}

function unmount() {
  if (!current) return;
  try {
    const replayer = current.player.getReplayer && current.player.getReplayer();
    if (replayer) replayer.destroy();
    if (current.player.$destroy) current.player.$destroy();
  } catch (err) {
    console.warn('destroying player', err);
  }
  current = null;
  document.getElementById('player').innerHTML = '';
}

function report(instance, err) {
  if (ws && ws.readyState === WebSocket.OPEN) {
    ws.send(JSON.stringify({ op: 'error', instance: instance, message: String(err && err.message || err) }));
  }
}

window.addEventListener('error', (e) => {
  if (current) report(current.id, e.error || e.message);
});

function showFailure(message) {
  document.getElementById('failure-message').textContent = message || '';
  document.getElementById('failure').classList.remove('hidden');
}

function hideFailure() {
  document.getElementById('failure').classList.add('hidden');
}

async function resetPlayer() {
  await api('POST', '/api/player/reset');
}

async function api(method, path, body, isForm) {
  const opts = { method: method };
  if (body !== undefined) {
    opts.body = isForm ? body : JSON.stringify(body);
    if (!isForm) opts.headers = { 'Content-Type': 'application/json' };
  }
  const resp = await fetch(path, opts);
  const data = await resp.json();
  if (!resp.ok) throw new Error(data.message || data.error);
  return data;
}

async function setMode(m) {
  const state = await api('PUT', '/api/mode', { mode: m });
  applyMode(state.mode);
}

function applyMode(m) {
  mode = m;
  document.querySelectorAll('.tab').forEach(t => t.classList.toggle('active', t.dataset.mode === m));
  document.getElementById('panel-file').classList.toggle('hidden', m !== 'file');
  document.getElementById('panel-url').classList.toggle('hidden', m !== 'url');
  refresh();
}

async function refresh() {
  renderList('file-list', await api('GET', '/api/files'), e => selectFile(e.key));
  renderList('url-list', await api('GET', '/api/urls'), e => selectURL(e.key));
}

function renderList(id, data, onSelect) {
  const ul = document.getElementById(id);
  ul.innerHTML = '';
  data.entries.forEach(e => {
    const li = document.createElement('li');
    li.textContent = e.name || e.key;
    if (e.key === data.selected) li.className = 'active';
    const meta = document.createElement('div');
    meta.className = 'meta';
    meta.textContent = e.events + ' events, ' + new Date(e.loaded_at).toLocaleTimeString();
    li.appendChild(meta);
    li.onclick = () => onSelect(e);
    ul.appendChild(li);
  });
}

async function selectFile(id) {
  setError('file-error', '');
  try {
    await api('POST', '/api/files/' + encodeURIComponent(id) + '/select');
  } catch (err) {
    setError('file-error', err.message);
  }
  refresh();
}

async function selectURL(url) {
  setError('url-error', '');
  try {
    await api('POST', '/api/urls/select', { url: url });
  } catch (err) {
    setError('url-error', err.message);
  }
  refresh();
}

document.getElementById('file-input').addEventListener('change', async (e) => {
  const file = e.target.files[0];
  if (!file) return;
  setError('file-error', '');
  const form = new FormData();
  form.append('file', file);
  try {
    await api('POST', '/api/files', form, true);
  } catch (err) {
    setError('file-error', err.message);
  }
  e.target.value = '';
  refresh();
});

async function loadURL() {
  const btn = document.getElementById('url-btn');
  const url = document.getElementById('url-input').value.trim();
  setError('url-error', '');
  btn.disabled = true;
  btn.textContent = 'Loading...';
  try {
    await api('POST', '/api/urls', { url: url });
  } catch (err) {
    setError('url-error', err.message);
  } finally {
    btn.disabled = false;
    btn.textContent = 'Load';
  }
  refresh();
}

function setError(id, msg) {
  document.getElementById(id).textContent = msg;
}

(async () => {
  const state = await api('GET', '/api/state');
  applyMode(state.viewer.mode);
  connect();
})();
</script>
</body>
</html>`
