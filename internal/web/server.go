package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"demosaic/internal/tasks"
)

// Hub pushes per-image restoration progress to websocket clients.
type Hub struct {
	addr     string
	log      *slog.Logger
	upgrader websocket.Upgrader

	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewHub creates a progress hub bound to addr. The hub accepts progress
// samples immediately; Start actually serves them.
func NewHub(addr string, log *slog.Logger) *Hub {
	return &Hub{
		addr: addr,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// PublishProgress queues one progress sample for broadcast. Non-blocking:
// when the hub is not serving or clients lag, samples are dropped rather
// than stalling the restoration worker.
func (h *Hub) PublishProgress(u tasks.ProgressUpdate) {
	payload, err := json.Marshal(u)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
	}
}

// Start serves the dashboard and websocket endpoint until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	go h.run(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/", h.handleDashboard).Methods("GET")
	router.HandleFunc("/ws", h.handleWebSocket).Methods("GET")

	server := &http.Server{
		Addr:    h.addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctxShutdown)
	}()

	h.log.Info("progress hub starting", "addr", h.addr)
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("websocket client connected", "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				h.log.Debug("websocket client disconnected", "total", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(h.clients, client)
					client.Close()
				}
			}
		}
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	h.register <- conn

	go func() {
		defer func() {
			h.unregister <- conn
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Demosaic Progress</title>
    <style>
        :root {
            --bg-primary: #0f172a;
            --bg-secondary: #1e293b;
            --bg-tertiary: #334155;
            --text-primary: #f8fafc;
            --text-secondary: #cbd5e1;
            --accent: #3b82f6;
            --success: #10b981;
            --border: #475569;
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
        }

        .header {
            background: var(--bg-secondary);
            padding: 1rem 2rem;
            border-bottom: 1px solid var(--border);
            display: flex;
            justify-content: space-between;
            align-items: center;
        }

        .logo {
            font-size: 1.5rem;
            font-weight: bold;
            color: var(--accent);
        }

        .conn { color: var(--text-secondary); font-size: 0.9rem; }

        .images {
            display: grid;
            gap: 1rem;
            padding: 2rem;
            max-width: 900px;
        }

        .image-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 1rem 1.5rem;
        }

        .image-card .title {
            font-weight: 600;
            margin-bottom: 0.25rem;
            word-break: break-all;
        }

        .image-card .stage {
            color: var(--text-secondary);
            font-size: 0.85rem;
            margin-bottom: 0.5rem;
        }

        .bar {
            height: 8px;
            background: var(--bg-tertiary);
            border-radius: 4px;
            overflow: hidden;
        }

        .bar-fill {
            height: 100%;
            width: 0;
            background: var(--accent);
            transition: width 0.2s;
        }

        .image-card.done .bar-fill { background: var(--success); }
    </style>
</head>
<body>
    <div class="header">
        <span class="logo">Demosaic</span>
        <span class="conn" id="conn">connecting&hellip;</span>
    </div>
    <div class="images" id="images"></div>
    <script>
        const cards = new Map();

        function cardFor(u) {
            const key = u.run_id + '|' + u.source;
            let el = cards.get(key);
            if (!el) {
                el = document.createElement('div');
                el.className = 'image-card';
                el.innerHTML = '<div class="title"></div><div class="stage"></div>' +
                    '<div class="bar"><div class="bar-fill"></div></div>';
                el.querySelector('.title').textContent =
                    u.source + ' (' + u.image + '/' + u.images + ')';
                document.getElementById('images').prepend(el);
                cards.set(key, el);
            }
            return el;
        }

        const ws = new WebSocket('ws://' + location.host + '/ws');
        ws.onopen = () => document.getElementById('conn').textContent = 'live';
        ws.onclose = () => document.getElementById('conn').textContent = 'disconnected';
        ws.onmessage = (msg) => {
            const u = JSON.parse(msg.data);
            const el = cardFor(u);
            let label = u.stage;
            if (u.stage === 'tiling' && u.total > 0) {
                label += ' ' + u.done + '/' + u.total;
                el.querySelector('.bar-fill').style.width = (100 * u.done / u.total) + '%';
            }
            el.querySelector('.stage').textContent = label;
            if (u.stage === 'saved') {
                el.classList.add('done');
                el.querySelector('.bar-fill').style.width = '100%';
            }
        };
    </script>
</body>
</html>
`
