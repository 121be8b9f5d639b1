package domain

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPromotion_Apply(t *testing.T) {
	secondHalf, err := NewSecondHalfPrice("Second Half price!")
	if err != nil {
		t.Fatalf("NewSecondHalfPrice() error = %v", err)
	}
	thirdFree, err := NewThirdOneFree("Third One Free!")
	if err != nil {
		t.Fatalf("NewThirdOneFree() error = %v", err)
	}
	thirty, err := NewPercentDiscount("30% off!", 30)
	if err != nil {
		t.Fatalf("NewPercentDiscount() error = %v", err)
	}

	tests := []struct {
		name      string
		promotion Promotion
		price     float64
		quantity  int
		want      float64
	}{
		{"second half price even", secondHalf, 10, 4, 30},
		{"second half price odd", secondHalf, 10, 3, 25},
		{"second half price single", secondHalf, 10, 1, 10},
		{"third one free with remainder", thirdFree, 10, 7, 50},
		{"third one free exact", thirdFree, 10, 3, 20},
		{"third one free below triple", thirdFree, 10, 2, 20},
		{"percent discount", thirty, 100, 2, 140},
		{"zero quantity", thirty, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.promotion.Apply(tt.price, tt.quantity)
			if !almostEqual(got, tt.want) {
				t.Errorf("Apply(%v, %d) = %v, want %v", tt.price, tt.quantity, got, tt.want)
			}
		})
	}
}

func TestPromotion_Constructors(t *testing.T) {
	if _, err := NewSecondHalfPrice(""); !errors.Is(err, ErrEmptyPromotionName) || !IsValidation(err) {
		t.Errorf("NewSecondHalfPrice(\"\") error = %v, want validation ErrEmptyPromotionName", err)
	}
	if _, err := NewThirdOneFree("  "); !errors.Is(err, ErrEmptyPromotionName) {
		t.Errorf("NewThirdOneFree(blank) error = %v, want ErrEmptyPromotionName", err)
	}

	for _, percent := range []float64{-1, 100.5, math.NaN()} {
		if _, err := NewPercentDiscount("bad", percent); !errors.Is(err, ErrInvalidPercent) {
			t.Errorf("NewPercentDiscount(%v) error = %v, want ErrInvalidPercent", percent, err)
		}
	}

	free, err := NewPercentDiscount("free", 100)
	if err != nil {
		t.Fatalf("NewPercentDiscount(100) error = %v", err)
	}
	if got := free.Apply(99, 3); got != 0 {
		t.Errorf("100%% discount Apply() = %v, want 0", got)
	}
}

func TestNewPromotion(t *testing.T) {
	tests := []struct {
		kind    PromotionKind
		percent float64
		wantErr bool
	}{
		{PromotionSecondHalfPrice, 0, false},
		{PromotionThirdOneFree, 0, false},
		{PromotionPercentDiscount, 15, false},
		{PromotionKind("buy_one_get_two"), 0, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			promo, err := NewPromotion(tt.kind, "promo", tt.percent)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPromotion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownPromotion) {
					t.Errorf("NewPromotion() error = %v, want ErrUnknownPromotion", err)
				}
				return
			}
			if promo.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", promo.Kind(), tt.kind)
			}
			if promo.Name() != "promo" {
				t.Errorf("Name() = %v, want promo", promo.Name())
			}
		})
	}
}
