package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"proctorcam/internal/model"
)

type response struct {
	Predictions *[]json.RawMessage `json:"predictions"`
}

// record uses pointers so missing fields can be told apart from zeros.
type record struct {
	Class      *string  `json:"class"`
	Confidence *float64 `json:"confidence"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Width      *float64 `json:"width"`
	Height     *float64 `json:"height"`
}

// Decode parses a detector response. Boxes arrive as center coordinates and
// are converted to top-left. Records with missing or out-of-range fields are
// skipped and counted; a body without a predictions array is ErrMalformed.
func Decode(r io.Reader) ([]model.Prediction, int, error) {
	var resp response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Predictions == nil {
		return nil, 0, fmt.Errorf("%w: missing predictions", ErrMalformed)
	}

	predictions := make([]model.Prediction, 0, len(*resp.Predictions))
	skipped := 0
	for _, raw := range *resp.Predictions {
		p, ok := parseRecord(raw)
		if !ok {
			skipped++
			continue
		}
		predictions = append(predictions, p)
	}
	return predictions, skipped, nil
}

// maxCoordinate bounds every position and size; larger values are not
// pixel coordinates.
const maxCoordinate = 1 << 20

func parseRecord(raw json.RawMessage) (model.Prediction, bool) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Prediction{}, false
	}
	if rec.Class == nil || rec.Confidence == nil || rec.X == nil || rec.Y == nil || rec.Width == nil || rec.Height == nil {
		return model.Prediction{}, false
	}
	if *rec.Confidence < 0 || *rec.Confidence > 1 || *rec.Width < 0 || *rec.Height < 0 {
		return model.Prediction{}, false
	}
	for _, v := range []float64{*rec.Confidence, *rec.X, *rec.Y, *rec.Width, *rec.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxCoordinate {
			return model.Prediction{}, false
		}
	}

	x, y := int(*rec.X), int(*rec.Y)
	w, h := int(*rec.Width), int(*rec.Height)
	return model.Prediction{
		Class:      *rec.Class,
		Confidence: *rec.Confidence,
		Box:        model.NewBox(x-w/2, y-h/2, w, h),
		ExactArea:  *rec.Width * *rec.Height,
	}, true
}
