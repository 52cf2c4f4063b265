package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"product_sheet/internal/config"
	"product_sheet/internal/retry"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client struct {
	service    *sheets.Service
	resilience config.ResilienceConfig
}

// Credentials selects how the Sheets service authenticates. JSON wins over File.
type Credentials struct {
	JSON []byte
	File string
}

func (c Credentials) option() (option.ClientOption, error) {
	switch {
	case len(c.JSON) > 0:
		return option.WithCredentialsJSON(c.JSON), nil
	case c.File != "":
		return option.WithCredentialsFile(c.File), nil
	default:
		return nil, errors.New("no service account credentials configured")
	}
}

func NewClient(ctx context.Context, creds Credentials, resilience config.ResilienceConfig) (*Client, error) {
	credOpt, err := creds.option()
	if err != nil {
		return nil, err
	}

	return newClient(ctx, resilience, credOpt, option.WithScopes(sheets.SpreadsheetsScope))
}

func newClient(ctx context.Context, resilience config.ResilienceConfig, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service:    service,
		resilience: resilience,
	}, nil
}

// Worksheet resolves the numeric sheet id for title and returns a handle bound to it.
func (c *Client) Worksheet(ctx context.Context, spreadsheetID, title string) (*Worksheet, error) {
	log.Debug().Str("spreadsheet_id", spreadsheetID).Str("sheet", title).Msg("Resolving worksheet")

	sheetID, err := retry.WithRetry(ctx, c.readPolicy(), func(ctx context.Context) (int64, error) {
		resp, err := c.service.Spreadsheets.Get(spreadsheetID).
			Fields("sheets.properties").
			Context(ctx).
			Do()
		if err != nil {
			return 0, fmt.Errorf("failed to get spreadsheet: %w", err)
		}
		for _, s := range resp.Sheets {
			if s.Properties != nil && s.Properties.Title == title {
				return s.Properties.SheetId, nil
			}
		}
		return 0, fmt.Errorf("worksheet %q not found in spreadsheet %s", title, spreadsheetID)
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("sheet", title).Int64("sheet_id", sheetID).Msg("Resolved worksheet")
	return &Worksheet{
		client:        c,
		spreadsheetID: spreadsheetID,
		title:         title,
		sheetID:       sheetID,
	}, nil
}

func (c *Client) readPolicy() retry.Config {
	policy := c.resilience.SheetRead
	policy.Retryable = IsRetryable
	return policy
}

func (c *Client) readRange(ctx context.Context, spreadsheetID, range_, majorDimension string) ([][]interface{}, error) {
	return retry.WithRetry(ctx, c.readPolicy(), func(ctx context.Context) ([][]interface{}, error) {
		call := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).
			ValueRenderOption("FORMULA").
			Context(ctx)
		if majorDimension != "" {
			call = call.MajorDimension(majorDimension)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet: %w", err)
		}
		return resp.Values, nil
	})
}

func (c *Client) appendRows(ctx context.Context, spreadsheetID, range_ string, rows [][]interface{}, mode InputMode) error {
	valueRange := &sheets.ValueRange{
		Values: rows,
	}

	_, err := c.service.Spreadsheets.Values.Append(spreadsheetID, range_, valueRange).
		ValueInputOption(string(mode)).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append rows: %w", err)
	}

	return nil
}

func (c *Client) updateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}, mode InputMode) error {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, valueRange).
		ValueInputOption(string(mode)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}

	return nil
}

func (c *Client) batchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) error {
	if len(requests) == 0 {
		return nil
	}

	_, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to batch update spreadsheet: %w", err)
	}

	return nil
}

// IsRetryable reports whether err is a rate-limit, server-side, or transport
// failure from the Sheets API. Client errors such as 400 and 403 are final.
func IsRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
