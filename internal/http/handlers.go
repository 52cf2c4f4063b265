package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"product_sheet/internal/inventory"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 10 << 20

type App struct {
	Inventory *inventory.Orchestrator
}

type message struct {
	Message string `json:"message"`
}

type addProductRequest struct {
	Name     *string `json:"name"`
	Price    *int    `json:"price"`
	Quantity *int    `json:"quantity"`
}

type uploadRequest struct {
	Data []json.RawMessage `json:"data"`
}

func NewApp(inv *inventory.Orchestrator) *App {
	return &App{Inventory: inv}
}

func (a *App) addProductHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	var req addProductRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	switch {
	case req.Name == nil:
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	case req.Price == nil:
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "price is required")
		return
	case req.Quantity == nil:
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "quantity is required")
		return
	}

	p := inventory.Product{Name: *req.Name, Price: *req.Price, Quantity: *req.Quantity}
	if err := a.Inventory.AddProduct(r.Context(), p); err != nil {
		a.sheetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Product added successfully"})
}

func (a *App) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var (
		rows [][]interface{}
		err  error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		rows, err = rowsFromMultipart(r)
	} else {
		rows, err = rowsFromJSON(r.Body)
	}
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	if err := a.Inventory.UploadRows(r.Context(), rows); err != nil {
		a.sheetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Excel data added successfully"})
}

func (a *App) fetchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	rows, err := a.Inventory.FetchAll(r.Context())
	if err != nil {
		a.sheetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) sheetError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().
		Err(err).
		Str("path", r.URL.Path).
		Str("request_id", RequestIDFromContext(r.Context())).
		Msg("Sheet operation failed")
	WriteJSONError(w, http.StatusInternalServerError, "sheet_error", err.Error())
}

func rowsFromJSON(body io.Reader) ([][]interface{}, error) {
	var req uploadRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if req.Data == nil {
		return nil, errors.New("data is required")
	}

	rows := make([][]interface{}, 0, len(req.Data))
	for i, raw := range req.Data {
		row, err := decodeRow(raw)
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeRow accepts a JSON array of scalars. Numbers keep their literal text.
func decodeRow(raw json.RawMessage) ([]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row []interface{}
	if err := dec.Decode(&row); err != nil || row == nil {
		return nil, errors.New("row must be an array")
	}
	for j, v := range row {
		switch v.(type) {
		case nil, string, bool, json.Number:
		default:
			return nil, fmt.Errorf("cell %d must be a scalar value", j)
		}
	}
	return row, nil
}

func rowsFromMultipart(r *http.Request) ([][]interface{}, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file field is required: %w", err)
	}
	defer file.Close()

	log.Debug().Str("filename", header.Filename).Int64("size", header.Size).Msg("Reading uploaded workbook")
	return inventory.ReadWorkbook(file)
}
