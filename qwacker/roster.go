package qwacker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	rosterColumnFirst     = "First"
	rosterColumnLast      = "Last"
	rosterColumnEmail     = "Email"
	rosterColumnSections  = "Sections"
	rosterColumnUsername  = "Username"
	rosterColumnPreferred = "Preferred"
	rosterColumnEmojis    = "Emojis"
	rosterColumnTimestamp = "Timestamp"
)

// rosterRequiredColumns are the header columns every roster CSV must carry,
// in the order they're reported when missing.
var rosterRequiredColumns = []string{
	rosterColumnFirst,
	rosterColumnLast,
	rosterColumnEmail,
	rosterColumnSections,
	rosterColumnUsername,
}

// timestampLayouts are the accepted forms for the roster Timestamp column.
// The roster export writes ISO-8601, with or without a zone offset.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ValidationError indicates a single roster field failed validation.
type ValidationError struct {
	Field string
	Value string
}

func (e ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("missing value for %s", e.Field)
	}
	return fmt.Sprintf("bad value for %s field: %s", e.Field, e.Value)
}

// SchemaError indicates the CSV header is missing required columns.
// No rows are processed when this is returned.
type SchemaError struct {
	Missing []string
	Header  []string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf(
		"missing required fields: %s (got: %s)",
		strings.Join(e.Missing, ", "),
		strings.Join(e.Header, ", "),
	)
}

// RowParseError indicates a specific data row failed to parse. Row is
// 1-based. Parsing halts at the first bad row.
type RowParseError struct {
	Row int
	Raw []string
	Err error
}

func (e RowParseError) Error() string {
	return fmt.Sprintf(
		"parsing failed at row %d (%s): %s",
		e.Row,
		strings.Join(e.Raw, ","),
		e.Err,
	)
}

func (e RowParseError) Unwrap() error { return e.Err }

// DiscussionLeader is one row of the roster CSV: a person who receives a
// "Team" role and a private ask-channel.
//
// A record is constructed by parseRoster, annotated in place with
// RoleEmoji by assignRoleEmojis, then with Role and Channel by the
// provisioning run, and discarded when the command invocation ends.
type DiscussionLeader struct {
	First     string
	Last      string
	Email     string
	Sections  []int
	Username  string
	Preferred string
	Emojis    []string
	Timestamp time.Time

	// RoleEmoji is set exactly once by assignRoleEmojis.
	RoleEmoji string

	// Role and Channel are set after the corresponding create call succeeds.
	Role    *discordgo.Role
	Channel *discordgo.Channel
}

// newDiscussionLeader builds a record from a header-keyed row mapping.
func newDiscussionLeader(row map[string]string) (*DiscussionLeader, error) {
	for _, field := range []string{
		rosterColumnFirst, rosterColumnLast, rosterColumnEmail, rosterColumnSections,
	} {
		if row[field] == "" {
			return nil, ValidationError{Field: field}
		}
	}

	dl := &DiscussionLeader{
		First:    row[rosterColumnFirst],
		Last:     row[rosterColumnLast],
		Email:    row[rosterColumnEmail],
		Username: row[rosterColumnUsername],
	}

	for _, s := range strings.Split(row[rosterColumnSections], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, ValidationError{
				Field: rosterColumnSections,
				Value: row[rosterColumnSections],
			}
		}
		dl.Sections = append(dl.Sections, n)
	}

	if preferred := row[rosterColumnPreferred]; preferred != "" &&
		!strings.EqualFold(preferred, dl.First) {
		dl.Preferred = preferred
	}

	dl.Emojis = extractEmojis(row[rosterColumnEmojis])

	if rawTS := row[rosterColumnTimestamp]; rawTS != "" {
		ts, err := parseTimestamp(rawTS)
		if err != nil {
			return nil, ValidationError{Field: rosterColumnTimestamp, Value: rawTS}
		}
		dl.Timestamp = ts
	}

	return dl, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseRoster turns raw CSV text into discussion leader records, one per
// data row, in file order. The header must carry every column in
// rosterRequiredColumns; extra columns are ignored. The first bad row
// stops parsing.
func parseRoster(rawCSV string) ([]*DiscussionLeader, error) {
	reader := csv.NewReader(strings.NewReader(rawCSV))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, SchemaError{Missing: rosterRequiredColumns}
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		// Sheets exports sometimes lead with a BOM.
		columns[strings.TrimPrefix(name, "\ufeff")] = idx
	}

	var missing []string
	for _, name := range rosterRequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, SchemaError{Missing: missing, Header: header}
	}

	var dls []*DiscussionLeader
	for rowNum := 1; ; rowNum++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			// A CSV syntax error (unterminated quote, stray quote) is a
			// bad row, not end of input.
			return nil, RowParseError{Row: rowNum, Raw: record, Err: readErr}
		}

		row := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(record) {
				row[name] = record[idx]
			}
		}

		dl, rowErr := newDiscussionLeader(row)
		if rowErr != nil {
			return nil, RowParseError{Row: rowNum, Raw: record, Err: rowErr}
		}
		dls = append(dls, dl)
	}

	return dls, nil
}

// PreferredName returns the preferred name if one exists, otherwise the
// first name.
func (dl *DiscussionLeader) PreferredName() string {
	if dl.Preferred != "" {
		return dl.Preferred
	}
	return dl.First
}

// FullName returns "First Last", or "First “Preferred” Last" when a
// preferred name is set.
func (dl *DiscussionLeader) FullName() string {
	if dl.Preferred != "" {
		return fmt.Sprintf("%s “%s” %s", dl.First, dl.Preferred, dl.Last)
	}
	return fmt.Sprintf("%s %s", dl.First, dl.Last)
}

// SectionsString returns "Section 1", "Sections 1 and 2", or
// "Sections 1, 2, and 3" (Oxford comma), in the record's section order.
func (dl *DiscussionLeader) SectionsString() string {
	switch len(dl.Sections) {
	case 1:
		return fmt.Sprintf("Section %d", dl.Sections[0])
	case 2:
		return fmt.Sprintf("Sections %d and %d", dl.Sections[0], dl.Sections[1])
	default:
		head := make([]string, len(dl.Sections)-1)
		for i, s := range dl.Sections[:len(dl.Sections)-1] {
			head[i] = strconv.Itoa(s)
		}
		return fmt.Sprintf(
			"Sections %s, and %d",
			strings.Join(head, ", "),
			dl.Sections[len(dl.Sections)-1],
		)
	}
}

// AskChannelName returns "❓ask-name".
func (dl *DiscussionLeader) AskChannelName() string {
	return fmt.Sprintf("❓ask-%s", dl.PreferredName())
}

// RoleName returns "Team Name".
func (dl *DiscussionLeader) RoleName() string {
	return fmt.Sprintf("Team %s", dl.PreferredName())
}

func (dl *DiscussionLeader) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("first", dl.First),
		slog.String("last", dl.Last),
		slog.String("email", dl.Email),
		slog.Any("sections", dl.Sections),
	}
	if dl.Preferred != "" {
		attrs = append(attrs, slog.String("preferred", dl.Preferred))
	}
	if dl.RoleEmoji != "" {
		attrs = append(attrs, slog.String("role_emoji", dl.RoleEmoji))
	}
	if dl.Role != nil {
		attrs = append(attrs, slog.String("role_id", dl.Role.ID))
	}
	if dl.Channel != nil {
		attrs = append(attrs, slog.String("channel_id", dl.Channel.ID))
	}
	return slog.GroupValue(attrs...)
}
