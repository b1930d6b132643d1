package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar date without a time zone. It embeds civil.Date for
// text and JSON encoding ("2006-01-02") and adds database support.
type Date struct {
	civil.Date
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{civil.Date{Year: year, Month: month, Day: day}}
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return Date{d}, nil
}

func DateOf(t time.Time) Date {
	return Date{civil.DateOf(t)}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return d.In(time.UTC)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Before(o.Date):
		return -1
	case d.After(o.Date):
		return 1
	}
	return 0
}

// Value implements driver.Valuer for Date
func (d Date) Value() (driver.Value, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("invalid date %s", d.String())
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for Date
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		*d = Date{civil.Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}}
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	case nil:
		return errors.New("date: unexpected NULL")
	}
	return fmt.Errorf("date: unsupported type %T", value)
}

func (d *Date) scanString(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	parsed, err := civil.ParseDate(s)
	if err != nil {
		return err
	}
	*d = Date{parsed}
	return nil
}
