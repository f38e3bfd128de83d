// Package tickets renders the PDF ticket for a booking and stores it.
package tickets

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"ticketing/src/lib/storage"
	"ticketing/src/models"
	"ticketing/src/types"

	"github.com/go-pdf/fpdf"
)

const ContentType = "application/pdf"

type Document struct {
	BookingID   string
	Key         string
	Filename    string
	ContentType string
	Content     []byte
	Fields      Fields
}

type Renderer struct {
	store storage.ObjectStore
	qrKey []byte
}

// NewRenderer takes the hex encoded AES key used to seal QR payloads; empty disables sealing.
func NewRenderer(store storage.ObjectStore, qrSecret string) (*Renderer, error) {
	r := &Renderer{store: store}
	if qrSecret != "" {
		key, err := hex.DecodeString(qrSecret)
		if err != nil {
			return nil, fmt.Errorf("could not read qr key: %w", err)
		}
		switch len(key) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("qr key must be 16, 24 or 32 bytes, got %d", len(key))
		}
		r.qrKey = key
	}
	return r, nil
}

// Render builds the ticket for b and writes it under Key(b), replacing any earlier copy.
// A nil ev renders the "Event removed" variant.
func (r *Renderer) Render(ctx context.Context, b *models.Booking, ev *models.Event) (*Document, error) {
	content, fields, err := r.Build(b, ev)
	if err != nil {
		return nil, &types.RenderError{BookingID: b.ID.String(), Err: err}
	}
	key := Key(b)
	if err := r.store.Put(ctx, key, ContentType, content); err != nil {
		log.Printf("[tickets] Could not store ticket %s: %s\n", key, err.Error())
		return nil, &types.RenderError{BookingID: b.ID.String(), Err: err}
	}
	return &Document{
		BookingID:   b.ID.String(),
		Key:         key,
		Filename:    Filename(ev),
		ContentType: ContentType,
		Content:     content,
		Fields:      fields,
	}, nil
}

// Load returns a previously stored document.
func (r *Renderer) Load(ctx context.Context, b *models.Booking, ev *models.Event, key string) (*Document, error) {
	if key == "" {
		key = Key(b)
	}
	content, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Document{
		BookingID:   b.ID.String(),
		Key:         key,
		Filename:    Filename(ev),
		ContentType: ContentType,
		Content:     content,
		Fields:      FieldsFor(b, ev),
	}, nil
}

// Build lays out the PDF without storing it.
func (r *Renderer) Build(b *models.Booking, ev *models.Event) ([]byte, Fields, error) {
	fields := FieldsFor(b, ev)
	text, err := qrText(r.qrKey, b)
	if err != nil {
		return nil, fields, fmt.Errorf("qr payload: %w", err)
	}
	qr, err := qrJPEG(text)
	if err != nil {
		return nil, fields, fmt.Errorf("qr image: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetTitle("Event Ticket "+fields.BookingID, false)
	pdf.SetCreator("ticketing", false)
	pdf.SetCreationDate(b.CreatedAt)
	pdf.SetModificationDate(b.CreatedAt)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Event Ticket", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 14)
	for _, row := range fields.lines() {
		if row[1] == "" {
			continue
		}
		pdf.CellFormat(0, 9, tr(row[0]+": "+row[1]), "", 1, "L", false, 0, "")
	}
	if fields.Description != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 6, tr(fields.Description), "", "L", false)
	}

	pdf.RegisterImageOptionsReader("qr", fpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 140, 20, 50, 50, false, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fields, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), fields, nil
}
