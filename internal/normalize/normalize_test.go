package normalize

import (
	"testing"

	"github.com/insightdelivered/aml-statement-core/internal/models"
	"github.com/insightdelivered/aml-statement-core/internal/money"
)

func TestDetectChannel(t *testing.T) {
	cases := []struct {
		bankCategory, title, cp string
		want                    models.Channel
	}{
		{"TR.KART", "", "", models.ChannelCard},
		{"PRZELEW", "", "", models.ChannelTransfer},
		{"ST.ZLEC", "", "", models.ChannelTransfer},
		{"P.BLIK", "przelew na telefon", "", models.ChannelBlikP2P},
		{"P.BLIK", "platnosc blik sklep", "", models.ChannelBlikMerchant},
		{"", "wyplata bankomat", "", models.ChannelCash},
		{"", "zwrot towaru", "", models.ChannelRefund},
		{"", "nieznana operacja", "", models.ChannelOther},
	}
	for _, c := range cases {
		got := DetectChannel(c.bankCategory, c.title, c.cp)
		if got != c.want {
			t.Errorf("DetectChannel(%q,%q,%q) = %s, want %s", c.bankCategory, c.title, c.cp, got, c.want)
		}
	}
}

// S2: feeding the same RawTransaction three times yields one NormalizedTransaction.
func TestNormalizeAllDedup(t *testing.T) {
	raw := models.RawTransaction{
		Date:            "2024-01-05",
		Amount:          money.MustParse("-150.00"),
		CounterpartyRaw: "JAN KOWALSKI",
		Title:           "Przelew",
	}
	raws := []models.RawTransaction{raw, raw, raw}
	out := NormalizeAll(raws, "stmt-1")
	if len(out) != 1 {
		t.Fatalf("expected 1 transaction after dedup, got %d", len(out))
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := models.RawTransaction{
		Date:            "2024-01-05",
		Amount:          money.MustParse("-150.00"),
		CounterpartyRaw: "JAN KOWALSKI",
		Title:           "Przelew",
	}
	a := NormalizeAll([]models.RawTransaction{raw}, "stmt-1")
	if len(a) != 1 {
		t.Fatalf("want 1, got %d", len(a))
	}
	if a[0].TxHash == "" {
		t.Fatalf("expected non-empty hash")
	}
	b := NormalizeAll([]models.RawTransaction{raw, raw}, "stmt-1")
	if len(b) != 1 || b[0].TxHash != a[0].TxHash {
		t.Fatalf("normalizing again changed the result: got %d txns", len(b))
	}
}
