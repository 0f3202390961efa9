package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/skip2/go-qrcode"

	"github.com/xenking/bistro/internal/domain/auth"
)

// ReceiptEncoder renders a scannable receipt for an order.
type ReceiptEncoder interface {
	Encode(o *Order) ([]byte, error)
}

// QRReceipts encodes a PNG QR code pointing at the order's rating page.
type QRReceipts struct {
	BaseURL string
	Size    int
}

// RateURL returns the link embedded in the receipt.
func (q QRReceipts) RateURL(orderID string) string {
	return strings.TrimRight(q.BaseURL, "/") + "/orders/" + orderID + "/rate"
}

func (q QRReceipts) Encode(o *Order) ([]byte, error) {
	size := q.Size
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(q.RateURL(o.ID), qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	return png, nil
}

// ReceiptQR returns the PNG receipt of an order visible to the caller.
func (s *Service) ReceiptQR(ctx context.Context, p *auth.Principal, orderID string) ([]byte, error) {
	o, err := s.GetOrder(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	return s.receipts.Encode(o)
}
