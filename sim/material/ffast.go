package material

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	// FFASTURL is the NIST X-ray form factor, attenuation and scattering
	// tables endpoint.
	FFASTURL    = "https://physics.nist.gov/cgi-bin/ffast/ffast.pl"
	httpTimeout = 30 * time.Second
)

// Range selects one of the two energy sub-ranges served by the remote source.
type Range int

const (
	Low Range = iota
	High
)

func (r Range) String() string {
	switch r {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Range(%d)", int(r))
	}
}

// code is the FFAST query value for the range.
func (r Range) code() string {
	if r == High {
		return "U"
	}
	return "L"
}

// Fetcher retrieves the raw curve of one energy sub-range for a formula.
type Fetcher interface {
	Fetch(ctx context.Context, formula string, r Range) (Curve, error)
}

// FFAST fetches total mass-attenuation tables from NIST FFAST.
type FFAST struct {
	BaseURL string
	Client  *http.Client
}

// NewFFAST returns a fetcher for the public FFAST endpoint.
func NewFFAST() *FFAST {
	return &FFAST{
		BaseURL: FFASTURL,
		Client:  &http.Client{Timeout: httpTimeout},
	}
}

// queryURL builds the request URL for formula and range.
func (f *FFAST) queryURL(formula string, r Range) string {
	q := url.Values{}
	q.Set("Formula", formula)
	q.Set("gtype", "3")
	q.Set("range", r.code())
	q.Set("frames", "no")
	q.Set("htmltable", "1")
	return f.BaseURL + "?" + q.Encode()
}

// Fetch downloads and parses one sub-range table.
func (f *FFAST) Fetch(ctx context.Context, formula string, r Range) (Curve, error) {
	u := f.queryURL(formula, r)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	logrus.Debugf("fetching %s range for %s from %s", r, formula, u)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP %d from %s", resp.StatusCode, u)
	}

	curve, err := parseTable(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s range table for %s: %w", r, formula, err)
	}
	return curve, nil
}

// parseTable pairs the text of consecutive <td> cells into points. Every cell
// must be numeric; anything else is a schema violation.
func parseTable(r io.Reader) (Curve, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var cells []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" {
			cells = append(cells, strings.TrimSpace(textContent(n)))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(cells) == 0 {
		return nil, fmt.Errorf("no table cells in response")
	}
	if len(cells)%2 != 0 {
		return nil, fmt.Errorf("odd number of table cells (%d)", len(cells))
	}

	curve := make(Curve, 0, len(cells)/2)
	for i := 0; i < len(cells); i += 2 {
		e, err := strconv.ParseFloat(cells[i], 64)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		mu, err := strconv.ParseFloat(cells[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i+1, err)
		}
		curve = append(curve, Point{Energy: e, Attenuation: mu})
	}
	return curve, nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
