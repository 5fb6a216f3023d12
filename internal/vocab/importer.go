package vocab

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/abhisek/lexiz/internal/apperr"
	"github.com/abhisek/lexiz/internal/logger"
)

// ImportConfig describes where a deck file keeps its columns.
type ImportConfig struct {
	FilePath           string
	DeckID             string
	SheetName          string // xlsx only; empty means the first sheet
	PromptColumn       string
	AnswerColumn       string
	PromptLocaleColumn string // optional
	AnswerLocaleColumn string // optional
	StartRow           int    // 1-based
}

// DefaultImportConfig reads prompts from A and answers from B, skipping a
// header row.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		PromptColumn:       "A",
		AnswerColumn:       "B",
		PromptLocaleColumn: "C",
		AnswerLocaleColumn: "D",
		StartRow:           2,
	}
}

// DefaultImportConfigFor returns the default layout for one file and deck.
func DefaultImportConfigFor(path, deckID string) ImportConfig {
	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.DeckID = deckID
	return cfg
}

// ImportResult summarizes one import.
type ImportResult struct {
	Processed int
	Created   int
	Updated   int
	Unchanged int
	Errors    []string
}

// Importer loads decks from xlsx or csv files.
type Importer struct {
	repo *Repo
	log  *logger.Logger
	now  func() time.Time
	loc  *time.Location
}

// NewImporter creates an Importer that writes through repo.
func NewImporter(repo *Repo, loc *time.Location, log *logger.Logger) *Importer {
	if loc == nil {
		loc = time.Local
	}
	return &Importer{repo: repo, log: logger.OrNop(log).With("service", "Importer"), now: time.Now, loc: loc}
}

// ItemID derives a stable ID so re-importing a deck updates rows in place.
func ItemID(deckID, prompt string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(deckID+"\x00"+Normalize(prompt))).String()
}

// Normalize trims a cell and collapses inner whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Import reads the file named by cfg and upserts its rows for userID.
// Existing items keep their review state; only their text is refreshed.
func (im *Importer) Import(ctx context.Context, userID string, cfg ImportConfig) (*ImportResult, error) {
	if userID == "" {
		return nil, apperr.Validation("import needs a user")
	}
	if cfg.DeckID == "" {
		cfg.DeckID = strings.TrimSuffix(filepath.Base(cfg.FilePath), filepath.Ext(cfg.FilePath))
	}
	if cfg.PromptColumn == "" && cfg.AnswerColumn == "" {
		d := DefaultImportConfig()
		cfg.PromptColumn, cfg.AnswerColumn = d.PromptColumn, d.AnswerColumn
		cfg.PromptLocaleColumn, cfg.AnswerLocaleColumn = d.PromptLocaleColumn, d.AnswerLocaleColumn
	}
	if cfg.PromptColumn == "" || cfg.AnswerColumn == "" {
		return nil, apperr.Validation("import needs both prompt and answer columns")
	}
	if cfg.StartRow < 1 {
		cfg.StartRow = 1
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(cfg.FilePath)) {
	case ".csv":
		rows, err = readCSV(cfg.FilePath)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(cfg.FilePath, cfg.SheetName)
	default:
		return nil, apperr.Validation("unsupported deck file %q", cfg.FilePath)
	}
	if err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for i, row := range rows {
		if i < cfg.StartRow-1 {
			continue
		}
		if blank(row) {
			continue
		}
		res.Processed++
		if err := im.importRow(ctx, userID, cfg, row, res); err != nil {
			if errors.Is(err, apperr.ErrStore) {
				return res, err
			}
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}

	im.log.Info("deck imported",
		"user", userID, "deck", cfg.DeckID,
		"created", res.Created, "updated", res.Updated, "errors", len(res.Errors))
	return res, nil
}

func (im *Importer) importRow(ctx context.Context, userID string, cfg ImportConfig, row []string, res *ImportResult) error {
	prompt := Normalize(cell(row, cfg.PromptColumn))
	answer := Normalize(cell(row, cfg.AnswerColumn))
	if prompt == "" {
		return errors.New("prompt is empty")
	}
	if answer == "" {
		return errors.New("answer is empty")
	}
	promptLocale := Normalize(cell(row, cfg.PromptLocaleColumn))
	answerLocale := Normalize(cell(row, cfg.AnswerLocaleColumn))

	id := ItemID(cfg.DeckID, prompt)
	now := im.now()

	existing, err := im.repo.Get(ctx, userID, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		it := NewItem(userID, cfg.DeckID, id, prompt, answer, civil.DateOf(now.In(im.loc)), now)
		it.PromptLocale, it.AnswerLocale = promptLocale, answerLocale
		if err := im.repo.Save(ctx, it); err != nil {
			return apperr.Store("save item", err)
		}
		res.Created++
		return nil
	case err != nil:
		return apperr.Store("load item", err)
	}

	if existing.AnswerText == answer && existing.PromptLocale == promptLocale && existing.AnswerLocale == answerLocale {
		res.Unchanged++
		return nil
	}
	existing.AnswerText = answer
	existing.PromptLocale, existing.AnswerLocale = promptLocale, answerLocale
	existing.UpdatedAt = now
	if err := im.repo.Save(ctx, existing); err != nil {
		return apperr.Store("save item", err)
	}
	res.Updated++
	return nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx, err := excelize.ColumnNameToNumber(column)
	if err != nil || idx > len(row) {
		return ""
	}
	return row[idx-1]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
