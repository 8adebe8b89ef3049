package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"marketpay/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBuildDescription(t *testing.T) {
	tests := []struct {
		name  string
		order models.Order
		want  string
	}{
		{
			name: "ticket titles are deduplicated",
			order: models.Order{ID: "o1", Tickets: []models.Ticket{
				{EventTitle: "Jazz Night"}, {EventTitle: "Jazz Night"}, {EventTitle: "Opera"},
			}},
			want: "Tickets: Jazz Night, Opera",
		},
		{
			name: "shop item names",
			order: models.Order{ID: "o2", Items: []models.OrderItem{
				{Name: "Coffee Beans"}, {Name: "Mug"},
			}},
			want: "Order: Coffee Beans, Mug",
		},
		{
			name: "markup is stripped",
			order: models.Order{ID: "o3", Items: []models.OrderItem{
				{Name: `<script>alert("x")</script>  Tea`},
			}},
			want: "Order: scriptalertxscript Tea",
		},
		{
			name:  "falls back to the order id",
			order: models.Order{ID: "0f8fad5b-d9cb-469f-a165-70867728950e"},
			want:  "Order 0f8fad5b",
		},
		{
			name:  "only unsafe characters",
			order: models.Order{ID: "abc", Items: []models.OrderItem{{Name: "<>!!"}}},
			want:  "Order abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDescription(&tt.order))
		})
	}
}

func TestBuildDescriptionTruncates(t *testing.T) {
	o := models.Order{ID: "o4", Items: []models.OrderItem{{Name: strings.Repeat("ü", 150)}}}
	got := BuildDescription(&o)
	assert.Equal(t, 100, utf8.RuneCountInString(got))
	assert.True(t, strings.HasPrefix(got, "Order: "))
}

func TestSanitizeCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b-c_d.e,f", sanitize("  a\t\nb-c_d.e,f  "))
}
