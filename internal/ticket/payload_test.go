package ticket

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movienight/backend/internal/models"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		attendees []models.Attendee
	}{
		{"single", []models.Attendee{{FirstName: "Jane", LastName: "Doe"}}},
		{"single vip", []models.Attendee{{FirstName: "Jane", LastName: "Doe", VIP: true}}},
		{"mixed", []models.Attendee{
			{FirstName: "Jane", LastName: "Doe", VIP: true},
			{FirstName: "John", LastName: "Roe"},
			{FirstName: "Zoë", LastName: "Ümlaut", VIP: true},
		}},
		{"quotes and commas", []models.Attendee{{FirstName: `Anne "A"`, LastName: "Smith, Jr."}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode("MN-2025-0A1B2C3D", tt.attendees)
			require.NoError(t, err)

			got, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, NewPayload("MN-2025-0A1B2C3D", tt.attendees), got)
			assert.Len(t, got.Names, len(tt.attendees))
			for i, a := range tt.attendees {
				assert.Equal(t, a.FirstName+" "+a.LastName, got.Names[i])
				assert.Equal(t, a.VIP, got.VIPs[i])
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	attendees := []models.Attendee{{FirstName: "Jane", LastName: "Doe", VIP: true}}
	a, err := Encode("MN-2025-0A1B2C3D", attendees)
	require.NoError(t, err)
	b, err := Encode("MN-2025-0A1B2C3D", attendees)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, `{"serial":"MN-2025-0A1B2C3D","names":["Jane Doe"],"vips":[true]}`, a)
}

func TestDecodeLegacyPayloadWithoutVIPs(t *testing.T) {
	p, err := Decode(`{"serial":"MN-2024-00000001","names":["A B","C D"]}`)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, p.VIPs)
	assert.False(t, p.HasVIP())
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "MN-2025-0A1B2C3D"},
		{"truncated", `{"serial":"MN-2025`},
		{"no serial", `{"names":["Jane Doe"]}`},
		{"blank serial", `{"serial":"  ","names":[]}`},
		{"array", `["MN-2025-0A1B2C3D"]`},
		{"length mismatch", `{"serial":"MN-2025-0A1B2C3D","names":["A B"],"vips":[true,false]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPayload))
		})
	}
}

func TestRenderPNG(t *testing.T) {
	raw, err := Encode("MN-2025-0A1B2C3D", []models.Attendee{{FirstName: "Jane", LastName: "Doe"}})
	require.NoError(t, err)

	img, err := RenderPNG(raw)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, ImageSize, cfg.Width)
	assert.Equal(t, ImageSize, cfg.Height)

	url := DataURL(img)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}
