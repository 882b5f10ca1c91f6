package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"rehearsal/api/internal/attendance"
)

const (
	dataColumns = "A:H"
	// DefaultConfigRange is the admin tab listing activities and time slots.
	DefaultConfigRange = "CONFIG!A:B"
)

type SheetsConfig struct {
	SpreadsheetID string
	ClientEmail   string
	PrivateKey    string
	ConfigRange   string
	Timeout       time.Duration
}

// SheetsGateway stores the ledger in a Google spreadsheet, one tab per activity.
type SheetsGateway struct {
	svc           *sheets.Service
	spreadsheetID string
	configRange   string
}

func NewSheetsGateway(ctx context.Context, cfg SheetsConfig) (*SheetsGateway, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	if strings.TrimSpace(cfg.ClientEmail) == "" || strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("sheets: service account email and private key are required")
	}
	jwtConfig := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
	client := jwtConfig.Client(context.Background())
	client.Timeout = cfg.Timeout

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return NewSheetsGatewayWithService(svc, cfg.SpreadsheetID, cfg.ConfigRange), nil
}

// NewSheetsGatewayWithService wraps an existing Sheets client.
func NewSheetsGatewayWithService(svc *sheets.Service, spreadsheetID, configRange string) *SheetsGateway {
	if strings.TrimSpace(configRange) == "" {
		configRange = DefaultConfigRange
	}
	return &SheetsGateway{svc: svc, spreadsheetID: spreadsheetID, configRange: configRange}
}

// ResolveSheetID finds the tab for activity. The configuration tab is never
// an activity tab.
func (g *SheetsGateway) ResolveSheetID(ctx context.Context, activity string) (int64, error) {
	if activity == g.configTab() {
		return 0, fmt.Errorf("%w: %q is the configuration tab", ErrSheetNotFound, activity)
	}
	resp, err := g.svc.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return 0, classifySheetsError("resolve sheet", err, false)
	}
	for _, sheet := range resp.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == activity {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrSheetNotFound, activity)
}

func (g *SheetsGateway) ReadRows(ctx context.Context, activity string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, sheetRange(activity, dataColumns)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifySheetsError("read rows", err, false)
	}
	return stringRows(resp.Values), nil
}

func (g *SheetsGateway) ApplyBatch(ctx context.Context, batch attendance.Batch) error {
	requests, err := batchRequests(batch)
	if err != nil {
		return err
	}
	_, err = g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return classifySheetsError("apply batch", err, true)
	}
	return nil
}

func (g *SheetsGateway) configTab() string {
	tab, _, _ := strings.Cut(g.configRange, "!")
	return strings.Trim(tab, "'")
}

// Options reads the configuration tab.
func (g *SheetsGateway) Options(ctx context.Context) (Options, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.configRange).Context(ctx).Do()
	if err != nil {
		return Options{}, classifySheetsError("read options", err, false)
	}
	return OptionsFromRows(stringRows(resp.Values)), nil
}

func (g *SheetsGateway) Ping(ctx context.Context) error {
	_, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return classifySheetsError("ping", err, false)
	}
	return nil
}

// batchRequests translates a batch into Sheets requests, keeping its order.
func batchRequests(batch attendance.Batch) ([]*sheets.Request, error) {
	requests := make([]*sheets.Request, 0, len(batch.Ops))
	for _, op := range batch.Ops {
		switch op.Kind {
		case attendance.OpDelete:
			requests = append(requests, &sheets.Request{
				DeleteDimension: &sheets.DeleteDimensionRequest{
					Range: &sheets.DimensionRange{
						SheetId:         batch.SheetID,
						Dimension:       "ROWS",
						StartIndex:      int64(op.Row),
						EndIndex:        int64(op.Row + 1),
						ForceSendFields: []string{"SheetId"},
					},
				},
			})
		case attendance.OpAppend:
			values := op.Values.Values()
			cells := make([]*sheets.CellData, 0, len(values))
			for _, v := range values {
				cells = append(cells, &sheets.CellData{
					UserEnteredValue: &sheets.ExtendedValue{StringValue: googleapi.String(v)},
				})
			}
			requests = append(requests, &sheets.Request{
				AppendCells: &sheets.AppendCellsRequest{
					SheetId:         batch.SheetID,
					Rows:            []*sheets.RowData{{Values: cells}},
					Fields:          "*",
					ForceSendFields: []string{"SheetId"},
				},
			})
		case attendance.OpColor:
			color := op.Category.Color()
			requests = append(requests, &sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          batch.SheetID,
						StartRowIndex:    int64(op.Row),
						EndRowIndex:      int64(op.Row + 1),
						StartColumnIndex: 0,
						EndColumnIndex:   attendance.ColumnCount,
						ForceSendFields:  []string{"SheetId", "StartColumnIndex"},
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							BackgroundColor: &sheets.Color{
								Red:             color.Red,
								Green:           color.Green,
								Blue:            color.Blue,
								ForceSendFields: []string{"Red", "Green", "Blue"},
							},
						},
					},
					Fields: "userEnteredFormat.backgroundColor",
				},
			})
		default:
			return nil, fmt.Errorf("sheets: unsupported operation %q", op.Kind)
		}
	}
	return requests, nil
}

// classifySheetsError wraps err as a StoreError. An API response means the
// request was rejected as a whole; a transport failure after the request was
// sent leaves the outcome unknown.
func classifySheetsError(op string, err error, sent bool) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %v", ErrSheetNotFound, err)
		}
		return &StoreError{Op: op, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &StoreError{Op: op, Err: err}
	}
	return &StoreError{Op: op, Err: err, Ambiguous: sent}
}

func sheetRange(title, columns string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + columns
}

func stringRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, r := range values {
		cells := make([]string, len(r))
		for j, v := range r {
			if v == nil {
				continue
			}
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}
	return rows
}
