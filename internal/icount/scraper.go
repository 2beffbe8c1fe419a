package icount

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

const (
	loginURL     = "https://app.icount.co.il/login/"
	documentsURL = "https://app.icount.co.il/documents/?doctype=invrec&status=paid"
)

// Invoice is one paid document scraped from the iCount portal.
type Invoice struct {
	DocNum        string
	Amount        float64
	CustomerName  string
	CustomerEmail string
}

// Scraper logs into the iCount web portal and reads the paid-invoices
// table. It exists because iCount's API plan does not include document
// listing; the webhook is the primary ingestion path and this covers
// invoices issued while the webhook endpoint was unreachable.
type Scraper struct {
	company  string
	user     string
	password string
	headless bool
	timeout  time.Duration
}

type Option func(*Scraper)

func WithHeadless(headless bool) Option {
	return func(s *Scraper) { s.headless = headless }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.timeout = d }
}

func NewScraper(company, user, password string, opts ...Option) *Scraper {
	s := &Scraper{
		company:  company,
		user:     user,
		password: password,
		headless: true,
		timeout:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPaidInvoices drives a browser through login and the documents
// list and returns every paid invoice it can parse. Rows that fail to
// parse are skipped, not fatal: a partial sync run is still useful.
func (s *Scraper) FetchPaidInvoices(ctx context.Context) ([]Invoice, error) {
	if s.company == "" || s.user == "" || s.password == "" {
		return nil, fmt.Errorf("icount: missing portal credentials")
	}

	l := launcher.New().Headless(s.headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("icount: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("icount: connect browser: %w", err)
	}
	defer browser.Close()

	var invoices []Invoice
	err = rod.Try(func() {
		page := browser.MustPage(loginURL).Timeout(s.timeout)
		page.MustWaitLoad()

		page.MustElement(`input[name="cid"]`).MustInput(s.company)
		page.MustElement(`input[name="user"]`).MustInput(s.user)
		page.MustElement(`input[name="pass"]`).MustInput(s.password)

		// The waiter must be set up before the click that triggers the
		// navigation, otherwise the login POST can race the next
		// MustNavigate and the session cookie never lands.
		wait := page.MustWaitNavigation()
		page.MustElement(`button[type="submit"]`).MustClick()
		wait()

		page.MustNavigate(documentsURL)
		page.MustWaitLoad()
		page.MustElement(`table.documents-list tbody tr`)

		rows := page.MustElements(`table.documents-list tbody tr`)
		for _, row := range rows {
			inv, ok := parseRow(row)
			if ok {
				invoices = append(invoices, inv)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("icount: scrape failed: %w", err)
	}
	return invoices, nil
}

func parseRow(row *rod.Element) (Invoice, bool) {
	cells, err := row.Elements("td")
	if err != nil || len(cells) < 4 {
		return Invoice{}, false
	}

	texts := make([]string, len(cells))
	for i, cell := range cells {
		t, err := cell.Text()
		if err != nil {
			return Invoice{}, false
		}
		texts[i] = strings.TrimSpace(t)
	}

	// Column layout: docnum, customer name, email, total.
	amount, err := ParseAmount(texts[3])
	if err != nil || texts[0] == "" {
		return Invoice{}, false
	}

	return Invoice{
		DocNum:        texts[0],
		CustomerName:  texts[1],
		CustomerEmail: texts[2],
		Amount:        amount,
	}, true
}

// ParseAmount strips currency formatting ("₪1,650.00") down to a float.
func ParseAmount(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric content in %q", raw)
	}
	return strconv.ParseFloat(cleaned, 64)
}
