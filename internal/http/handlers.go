package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jfarhadi/pos-sync/internal/model"
	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jfarhadi/pos-sync/internal/stats"
	"github.com/jfarhadi/pos-sync/internal/util"
	"github.com/labstack/echo/v4"
)

type createEventRequest struct {
	Kind      string     `json:"kind"` // transaction | inventory
	Type      string     `json:"type"` // sale | return | adjustment | restock | damage
	ProductID string     `json:"productId"`
	Quantity  int64      `json:"quantity"`
	UnitPrice int64      `json:"unitPrice"`
	Total     int64      `json:"total"`
	EventTime *time.Time `json:"eventTime"`
}

// createEventHandler is the capture surface for POS terminals. The agent owns
// id assignment and the store id; delivery happens later, on the worker's
// next cycle.
func createEventHandler(storeID string, records repository.RecordsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createEventRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed body"})
		}

		kind := model.RecordKind(req.Kind)
		if !kind.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "kind must be transaction or inventory"})
		}
		eventType, ok := model.ParseEventType(req.Type)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown event type"})
		}
		if req.ProductID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "productId is required"})
		}
		if req.Quantity == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "quantity must be non-zero"})
		}

		now := time.Now().UTC()
		eventTime := now
		if req.EventTime != nil {
			eventTime = req.EventTime.UTC()
		}
		total := req.Total
		if kind == model.KindTransaction && total == 0 {
			total = req.Quantity * req.UnitPrice
		}

		rec := model.Record{
			ID:        util.NewID(),
			Kind:      kind,
			StoreID:   storeID,
			ProductID: req.ProductID,
			Type:      eventType,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			Total:     total,
			EventTime: eventTime,
			CreatedAt: now,
		}
		if err := records.Insert(c.Request().Context(), nil, rec); err != nil {
			c.Logger().Errorf("capture insert failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "capture failed"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"id":        rec.ID,
			"storeId":   rec.StoreID,
			"createdAt": rec.CreatedAt,
		})
	}
}

// healthHandler maps the advisory verdict onto status codes: Degraded is
// still 200 (the engine is working, just behind), only Unhealthy is 503.
func healthHandler(reporter *stats.Reporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		rep := reporter.Report(c.Request().Context())
		code := http.StatusOK
		if rep.Verdict == stats.Unhealthy {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]string{"status": string(rep.Verdict)})
	}
}

func statsHandler(reporter *stats.Reporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, reporter.Report(c.Request().Context()))
	}
}

func listRetriesHandler(retries repository.RetryLogRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		entries, err := retries.ListRecent(c.Request().Context(), limit, offset)
		if err != nil {
			c.Logger().Errorf("retry log list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(entries),
			"results": entries,
		})
	}
}
