// Package client is a typed Go client for the registration API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized is returned on 401 so callers can send the user back to login.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is any other non-2xx answer of the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// Session is the caller's login state. It is passed to every call explicitly.
type Session struct {
	Token  string
	UserID string
}

type Client struct {
	BaseURL      string
	ServiceToken string
	HTTP         *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type Kind struct {
	ID             uint    `json:"id"`
	Vorname        string  `json:"vorname"`
	Nachname       string  `json:"nachname"`
	VereinID       *uint   `json:"verein_id,omitempty"`
	VerbandID      *uint   `json:"verband_id,omitempty"`
	VersicherungID *uint   `json:"versicherung_id,omitempty"`
	Vertrag        *string `json:"vertrag,omitempty"`
	Versichert     bool    `json:"versichert"`
}

type Anmeldung struct {
	ID           uint      `json:"id"`
	KindID       uint      `json:"kind_id"`
	WettkampfID  uint      `json:"wettkampf_id"`
	Anmeldedatum time.Time `json:"anmeldedatum"`
	Startnummer  int       `json:"startnummer"`
	FigurIDs     []uint    `json:"figur_ids"`
	Vorlaeufig   bool      `json:"vorlaeufig"`
	Status       string    `json:"status"`
	Versichert   bool      `json:"versichert"`
}

type CreateAnmeldung struct {
	KindID      uint   `json:"kind_id"`
	WettkampfID uint   `json:"wettkampf_id"`
	FigurIDs    []uint `json:"figur_ids"`
}

// AnmeldungQuery filters ListAnmeldungen; zero fields are omitted.
type AnmeldungQuery struct {
	WettkampfID uint
	KindID      uint
	Status      string
}

func (c *Client) GetKind(ctx context.Context, s Session, id uint) (*Kind, error) {
	var out Kind
	if err := c.do(ctx, s, http.MethodGet, "/kind/"+strconv.FormatUint(uint64(id), 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAnmeldung(ctx context.Context, s Session, id uint) (*Anmeldung, error) {
	var out Anmeldung
	if err := c.do(ctx, s, http.MethodGet, "/anmeldung/"+strconv.FormatUint(uint64(id), 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAnmeldungen(ctx context.Context, s Session, q AnmeldungQuery) ([]Anmeldung, error) {
	v := url.Values{}
	if q.WettkampfID != 0 {
		v.Set("wettkampf_id", strconv.FormatUint(uint64(q.WettkampfID), 10))
	}
	if q.KindID != 0 {
		v.Set("kind_id", strconv.FormatUint(uint64(q.KindID), 10))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	path := "/anmeldung"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out []Anmeldung
	if err := c.do(ctx, s, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAnmeldung(ctx context.Context, s Session, req CreateAnmeldung) (*Anmeldung, error) {
	if req.FigurIDs == nil {
		req.FigurIDs = []uint{}
	}
	var out Anmeldung
	if err := c.do(ctx, s, http.MethodPost, "/anmeldung", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateFiguren replaces the figure set of a registration.
func (c *Client) UpdateFiguren(ctx context.Context, s Session, id uint, figurIDs []uint) (*Anmeldung, error) {
	if figurIDs == nil {
		figurIDs = []uint{}
	}
	body := map[string][]uint{"figur_ids": figurIDs}
	var out Anmeldung
	if err := c.do(ctx, s, http.MethodPut, "/anmeldung/"+strconv.FormatUint(uint64(id), 10), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, s Session, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	if c.ServiceToken != "" {
		req.Header.Set("X-Service-Token", c.ServiceToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
