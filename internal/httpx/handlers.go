package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/you/go-flight-aggregator/internal/providers"
	"github.com/you/go-flight-aggregator/internal/service"
)

const (
	dateLayout  = "2006-01-02"
	wsWriteWait = 10 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type routeRequest struct {
	Origin      string `json:"origin" validate:"required,len=3,alpha"`
	Destination string `json:"destination" validate:"required,len=3,alpha"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
}

type routesRequest struct {
	Routes []routeRequest `json:"routes" validate:"required,min=1,max=50,dive"`
}

type routesResponse struct {
	Results []*providers.FlightSegment `json:"results"`
}

type routeUpdate struct {
	Index   int                      `json:"index"`
	Segment *providers.FlightSegment `json:"segment"`
}

type healthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// toRoutes validates req and converts it to aggregator routes.
func (req routesRequest) toRoutes() ([]service.Route, error) {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("invalid %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return nil, err
	}
	out := make([]service.Route, 0, len(req.Routes))
	for _, r := range req.Routes {
		d, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", r.Date, err)
		}
		out = append(out, service.Route{
			Origin:      strings.ToUpper(r.Origin),
			Destination: strings.ToUpper(r.Destination),
			Date:        d,
		})
	}
	return out, nil
}

func SearchHandler(svc *service.SearchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		q := r.URL.Query()
		routes, err := routesRequest{Routes: []routeRequest{{
			Origin:      q.Get("origin"),
			Destination: q.Get("destination"),
			Date:        q.Get("date"),
		}}}.toRoutes()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rt := routes[0]
		seg, ok := svc.SearchOneWay(r.Context(), rt.Origin, rt.Destination, rt.Date)
		if !ok {
			writeError(w, http.StatusNotFound, "no result")
			return
		}
		writeJSON(w, http.StatusOK, seg)
	}
}

func RoutesHandler(svc *service.SearchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req routesRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		routes, err := req.toRoutes()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, routesResponse{Results: svc.SearchRoutes(r.Context(), routes)})
	}
}

func HealthHandler(svc *service.SearchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Providers: svc.ProviderNames()})
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// the handshake is already authenticated by the JWT middleware
		return true
	},
}

// RoutesWSHandler reads one routes document from the client, streams an
// update per route as it completes and closes the connection.
func RoutesWSHandler(svc *service.SearchService, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Info("upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		conn.SetReadLimit(1 << 20)
		_ = conn.SetReadDeadline(time.Now().Add(wsWriteWait))
		var req routesRequest
		if err := conn.ReadJSON(&req); err != nil {
			closeWith(conn, websocket.CloseUnsupportedData, "bad json")
			return
		}
		routes, err := req.toRoutes()
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
			return
		}

		// the hijacked request context never ends, so a client that goes away
		// is detected by the reader below or by a failed write
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		_ = conn.SetReadDeadline(time.Time{})
		go func() {
			for {
				if _, _, err := conn.NextReader(); err != nil {
					cancel()
					return
				}
			}
		}()

		var mu sync.Mutex
		svc.SearchRoutesStream(ctx, routes, func(i int, seg *providers.FlightSegment) {
			mu.Lock()
			defer mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(routeUpdate{Index: i, Segment: seg}); err != nil {
				log.Info("write failed, abandoning batch", zap.Int("index", i), zap.Error(err))
				cancel()
			}
		})
		if ctx.Err() != nil {
			return
		}
		closeWith(conn, websocket.CloseNormalClosure, "done")
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
