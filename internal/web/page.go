package web

// indexHTML is the recorder page: capture a clip, send it, play the spoken
// reply and show the transcript newest-first.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Voice-to-Voice Chatbot</title>
<style>
  body { font-family: sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
  h1 { font-size: 1.4rem; }
  button { font-size: 1rem; padding: 0.5rem 1.2rem; margin-right: 0.5rem; }
  #status { color: #666; margin-left: 0.5rem; }
  .turn { border-bottom: 1px solid #eee; padding: 0.6rem 0; }
  .user::before { content: "User: "; font-weight: bold; }
  .ai::before { content: "AI: "; font-weight: bold; }
  .error { color: #b00; }
  #typed { width: 70%; padding: 0.4rem; }
</style>
</head>
<body>
<h1>Voice-to-Voice Chatbot</h1>
<p>
  <button id="record">Record</button>
  <button id="stop" disabled>Stop</button>
  <span id="status"></span>
</p>
<p>
  <input id="typed" placeholder="...or type your question">
  <button id="send">Send</button>
</p>
<audio id="player" autoplay></audio>
<div id="transcript"></div>
<script>
(function () {
  var sessionID = null;
  var recorder = null;
  var chunks = [];
  var statusEl = document.getElementById("status");
  var transcriptEl = document.getElementById("transcript");

  function setStatus(text, isError) {
    statusEl.textContent = text;
    statusEl.className = isError ? "error" : "";
  }

  function renderTurn(utterance, reply) {
    var div = document.createElement("div");
    div.className = "turn";
    var ai = document.createElement("div");
    ai.className = "ai";
    ai.textContent = reply;
    var user = document.createElement("div");
    user.className = "user";
    user.textContent = utterance;
    div.appendChild(ai);
    div.appendChild(user);
    transcriptEl.insertBefore(div, transcriptEl.firstChild);
  }

  function connectFeed() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var sock = new WebSocket(proto + location.host + "/ws/" + sessionID);
    sock.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "turn") renderTurn(msg.utterance, msg.reply);
    };
  }

  function handleReply(resp) {
    if (!resp.ok) {
      return resp.text().then(function (t) { setStatus(t, true); });
    }
    return resp.json().then(function (data) {
      setStatus(data.synthesis_failed ? "Speech unavailable, showing text only" : "");
      if (data.reply_audio) {
        var player = document.getElementById("player");
        player.src = "data:audio/" + data.audio_format + ";base64," + data.reply_audio;
        player.play().catch(function () {});
      }
    });
  }

  function sendAudio(blob) {
    setStatus("Transcribing...");
    fetch("/api/utterance/" + sessionID, {
      method: "POST",
      headers: { "Content-Type": blob.type || "audio/webm" },
      body: blob
    }).then(handleReply).catch(function (err) { setStatus(String(err), true); });
  }

  function sendTyped() {
    var input = document.getElementById("typed");
    var text = input.value;
    if (!text.trim()) return;
    input.value = "";
    setStatus("Thinking...");
    fetch("/api/message/" + sessionID, {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ text: text })
    }).then(handleReply).catch(function (err) { setStatus(String(err), true); });
  }

  document.getElementById("record").onclick = function () {
    navigator.mediaDevices.getUserMedia({ audio: true }).then(function (stream) {
      chunks = [];
      recorder = new MediaRecorder(stream);
      recorder.ondataavailable = function (e) { chunks.push(e.data); };
      recorder.onstop = function () {
        stream.getTracks().forEach(function (t) { t.stop(); });
        sendAudio(new Blob(chunks, { type: recorder.mimeType }));
      };
      recorder.start();
      setStatus("Recording...");
      document.getElementById("record").disabled = true;
      document.getElementById("stop").disabled = false;
    }).catch(function (err) { setStatus("Microphone unavailable: " + err, true); });
  };

  document.getElementById("stop").onclick = function () {
    if (recorder && recorder.state !== "inactive") recorder.stop();
    document.getElementById("record").disabled = false;
    document.getElementById("stop").disabled = true;
  };

  document.getElementById("send").onclick = sendTyped;
  document.getElementById("typed").addEventListener("keydown", function (e) {
    if (e.key === "Enter") sendTyped();
  });

  fetch("/api/session", { method: "POST" })
    .then(function (r) { return r.json(); })
    .then(function (data) {
      sessionID = data.session_id;
      connectFeed();
    })
    .catch(function (err) { setStatus("Failed to start session: " + err, true); });
})();
</script>
</body>
</html>
`
