package types

import (
	"testing"
)

func TestWithdrawalHash(t *testing.T) {
	w := &Withdrawal{
		Index:          0,
		ValidatorIndex: 100,
		Address:        HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"),
		Amount:         32_000_000_000, // 32 ETH in Gwei
	}

	h1 := WithdrawalHash(w)
	h2 := WithdrawalHash(w)
	if h1.IsZero() {
		t.Fatal("hash should not be zero")
	}
	if h1 != h2 {
		t.Fatal("hash should be deterministic")
	}
}

// TestWithdrawalHashSensitivity checks that every field of a Withdrawal
// participates in its hash: changing any one of them alone must change the
// result.
func TestWithdrawalHashSensitivity(t *testing.T) {
	base := &Withdrawal{
		Index:          1,
		ValidatorIndex: 100,
		Address:        HexToAddress("0xaaaa"),
		Amount:         1000,
	}
	baseHash := WithdrawalHash(base)

	variants := map[string]*Withdrawal{
		"index":     {Index: 2, ValidatorIndex: 100, Address: HexToAddress("0xaaaa"), Amount: 1000},
		"validator": {Index: 1, ValidatorIndex: 200, Address: HexToAddress("0xaaaa"), Amount: 1000},
		"address":   {Index: 1, ValidatorIndex: 100, Address: HexToAddress("0xbbbb"), Amount: 1000},
		"amount":    {Index: 1, ValidatorIndex: 100, Address: HexToAddress("0xaaaa"), Amount: 1_000_000_000},
	}
	for field, w := range variants {
		if WithdrawalHash(w) == baseHash {
			t.Errorf("changing %s alone did not change the hash", field)
		}
	}
}

func TestWithdrawalsRoot(t *testing.T) {
	if root := WithdrawalsRoot(nil); root != EmptyRootHash {
		t.Fatalf("empty withdrawals root = %s, want %s", root.Hex(), EmptyRootHash.Hex())
	}
	if root := WithdrawalsRoot([]*Withdrawal{}); root != EmptyRootHash {
		t.Fatalf("empty slice withdrawals root = %s, want %s", root.Hex(), EmptyRootHash.Hex())
	}

	withdrawals := []*Withdrawal{
		{Index: 0, ValidatorIndex: 1, Address: HexToAddress("0xaaaa"), Amount: 1000},
		{Index: 1, ValidatorIndex: 2, Address: HexToAddress("0xbbbb"), Amount: 2000},
	}
	root := WithdrawalsRoot(withdrawals)
	if root.IsZero() {
		t.Fatal("non-empty withdrawals root should not be zero")
	}
	if got := WithdrawalsRoot(withdrawals); got != root {
		t.Fatal("withdrawals root should be deterministic")
	}

	different := []*Withdrawal{{Index: 0, ValidatorIndex: 1, Address: HexToAddress("0xaaaa"), Amount: 9999}}
	if got := WithdrawalsRoot(different); got == root {
		t.Fatal("different withdrawals should produce different root")
	}
}

func TestEncodeDecodeWithdrawal(t *testing.T) {
	original := &Withdrawal{
		Index:          42,
		ValidatorIndex: 1000,
		Address:        HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"),
		Amount:         32_000_000_000,
	}

	encoded := EncodeWithdrawal(original)
	if len(encoded) == 0 {
		t.Fatal("encoded withdrawal should not be empty")
	}

	decoded, err := DecodeWithdrawal(encoded)
	if err != nil {
		t.Fatalf("DecodeWithdrawal failed: %v", err)
	}
	if *decoded != *original {
		t.Fatalf("decoded withdrawal = %+v, want %+v", decoded, original)
	}

	if hashBefore, hashAfter := WithdrawalHash(original), WithdrawalHash(decoded); hashBefore != hashAfter {
		t.Fatalf("hash changed after encode/decode: %s vs %s", hashBefore.Hex(), hashAfter.Hex())
	}
}

func TestDecodeWithdrawalErrors(t *testing.T) {
	if _, err := DecodeWithdrawal(nil); err == nil {
		t.Fatal("expected error for nil data")
	}
	if _, err := DecodeWithdrawal([]byte{0xff, 0xff}); err == nil {
		t.Fatal("expected error for invalid RLP")
	}
}

func TestValidateWithdrawal(t *testing.T) {
	tests := []struct {
		name    string
		w       *Withdrawal
		wantErr bool
	}{
		{"valid", &Withdrawal{ValidatorIndex: 100, Address: HexToAddress("0xdeadbeef"), Amount: 1000}, false},
		{"nil withdrawal", nil, true},
		{"zero address", &Withdrawal{ValidatorIndex: 100, Address: Address{}, Amount: 1000}, true},
		{"zero amount is valid", &Withdrawal{ValidatorIndex: 100, Address: HexToAddress("0xaaaa"), Amount: 0}, false},
	}
	for _, tt := range tests {
		err := ValidateWithdrawal(tt.w)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestProcessWithdrawals(t *testing.T) {
	addr1 := HexToAddress("0xaaaa")
	addr2 := HexToAddress("0xbbbb")

	withdrawals := []*Withdrawal{
		{Index: 0, ValidatorIndex: 1, Address: addr1, Amount: 1000},
		{Index: 1, ValidatorIndex: 2, Address: addr2, Amount: 2000},
		{Index: 2, ValidatorIndex: 3, Address: addr1, Amount: 3000},
	}

	credits, err := ProcessWithdrawals(withdrawals)
	if err != nil {
		t.Fatalf("ProcessWithdrawals failed: %v", err)
	}
	if credits[addr1] != 4000 {
		t.Fatalf("addr1 credit = %d, want 4000", credits[addr1])
	}
	if credits[addr2] != 2000 {
		t.Fatalf("addr2 credit = %d, want 2000", credits[addr2])
	}
}

func TestProcessWithdrawalsEmpty(t *testing.T) {
	for _, in := range [][]*Withdrawal{nil, {}} {
		credits, err := ProcessWithdrawals(in)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(credits) != 0 {
			t.Fatal("expected empty credit map")
		}
	}
}

func makeWithdrawals(n int, amount uint64) []*Withdrawal {
	ws := make([]*Withdrawal, n)
	for i := range ws {
		ws[i] = &Withdrawal{Index: uint64(i), ValidatorIndex: uint64(i), Address: HexToAddress("0xaaaa"), Amount: amount}
	}
	return ws
}

func TestProcessWithdrawalsTooMany(t *testing.T) {
	if _, err := ProcessWithdrawals(makeWithdrawals(MaxWithdrawalsPerPayload+1, 1000)); err == nil {
		t.Fatal("expected error for too many withdrawals")
	}
}

func TestProcessWithdrawalsExactMax(t *testing.T) {
	credits, err := ProcessWithdrawals(makeWithdrawals(MaxWithdrawalsPerPayload, 100))
	if err != nil {
		t.Fatalf("expected no error for exactly max withdrawals, got: %v", err)
	}
	if credits[HexToAddress("0xaaaa")] != 100*MaxWithdrawalsPerPayload {
		t.Fatal("credit sum mismatch")
	}
}

func TestProcessWithdrawalsDuplicateIndex(t *testing.T) {
	withdrawals := []*Withdrawal{
		{Index: 0, ValidatorIndex: 1, Address: HexToAddress("0xaaaa"), Amount: 1000},
		{Index: 0, ValidatorIndex: 2, Address: HexToAddress("0xbbbb"), Amount: 2000},
	}
	if _, err := ProcessWithdrawals(withdrawals); err == nil {
		t.Fatal("expected error for duplicate withdrawal index")
	}
}

func TestProcessWithdrawalsInvalidWithdrawal(t *testing.T) {
	withdrawals := []*Withdrawal{{Index: 0, ValidatorIndex: 1, Address: Address{}, Amount: 1000}}
	if _, err := ProcessWithdrawals(withdrawals); err == nil {
		t.Fatal("expected error for zero address withdrawal")
	}
}

func TestFilterByValidator(t *testing.T) {
	withdrawals := []*Withdrawal{
		{Index: 0, ValidatorIndex: 1, Address: HexToAddress("0xaaaa"), Amount: 1000},
		{Index: 1, ValidatorIndex: 2, Address: HexToAddress("0xbbbb"), Amount: 2000},
		{Index: 2, ValidatorIndex: 1, Address: HexToAddress("0xaaaa"), Amount: 3000},
		{Index: 3, ValidatorIndex: 3, Address: HexToAddress("0xcccc"), Amount: 4000},
	}

	if filtered := FilterByValidator(withdrawals, 1); len(filtered) != 2 || filtered[0].Index != 0 || filtered[1].Index != 2 {
		t.Fatalf("wrong withdrawals returned for validator 1: %+v", filtered)
	}
	if filtered := FilterByValidator(withdrawals, 2); len(filtered) != 1 {
		t.Fatalf("expected 1 withdrawal for validator 2, got %d", len(filtered))
	}
	if filtered := FilterByValidator(withdrawals, 99); len(filtered) != 0 {
		t.Fatalf("expected 0 withdrawals for validator 99, got %d", len(filtered))
	}
	if filtered := FilterByValidator(nil, 1); len(filtered) != 0 {
		t.Fatal("expected 0 for nil list")
	}
}

func TestTotalWithdrawalAmount(t *testing.T) {
	withdrawals := []*Withdrawal{
		{Amount: 1000}, {Amount: 2000}, {Amount: 3000},
	}
	if total := TotalWithdrawalAmount(withdrawals); total != 6000 {
		t.Fatalf("TotalWithdrawalAmount = %d, want 6000", total)
	}
	if TotalWithdrawalAmount(nil) != 0 {
		t.Fatal("expected 0 for nil list")
	}
	if TotalWithdrawalAmount([]*Withdrawal{{Amount: 42}}) != 42 {
		t.Fatal("expected 42 for single element")
	}
}

func TestMaxWithdrawalsPerPayloadConst(t *testing.T) {
	if MaxWithdrawalsPerPayload != 16 {
		t.Fatalf("MaxWithdrawalsPerPayload = %d, want 16", MaxWithdrawalsPerPayload)
	}
}
