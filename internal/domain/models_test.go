package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-ledger/internal/units"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Account{}).TableName():           "accounts",
		(TokenSupply{}).TableName():       "token_supply",
		(AuthorizedSpender{}).TableName(): "authorized_spenders",
		(ChatbotOwner{}).TableName():      "chatbot_owners",
		(DailyUsage{}).TableName():        "daily_usage",
		(PendingNative{}).TableName():     "pending_native",
		(NativePool{}).TableName():        "native_pool",
		(NativeTransfer{}).TableName():    "native_transfers",
		(Settlement{}).TableName():        "settlements",
		(Idempotency{}).TableName():       "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestAmount_RoundTripsThroughDB(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Account{}, &Settlement{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Settlement{}, "idx_settlement_user") {
		t.Fatalf("expected idx_settlement_user on settlements")
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_caller_scope_key") {
		t.Fatalf("expected ux_caller_scope_key on idempotency")
	}

	// Larger than uint64 to prove the string column keeps full precision.
	big := units.MustParseUnits("123456789012345678901.5")
	acc := Account{Address: "0x000000000000000000000000000000000000dEaD", Balance: NewAmount(big)}
	if err := db.Create(&acc).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got Account
	if err := db.First(&got, "address = ?", acc.Address).Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Balance.Cmp(acc.Balance) != 0 {
		t.Fatalf("balance = %s; want %s", got.Balance, acc.Balance)
	}
	if got.Balance.Human() != "123456789012345678901.5" {
		t.Fatalf("human = %s", got.Balance.Human())
	}
}

func TestAmount_JSON(t *testing.T) {
	a := AmountFromUint64(800000000000000)
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"800000000000000"` {
		t.Fatalf("marshal = %s", b)
	}

	var back Amount
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Cmp(a) != 0 {
		t.Fatalf("roundtrip mismatch: %s vs %s", back, a)
	}

	if err := json.Unmarshal([]byte(`12`), &back); err == nil {
		t.Fatalf("expected error for unquoted number")
	}
	if err := json.Unmarshal([]byte(`"-5"`), &back); !errors.Is(err, units.ErrBadAmount) {
		t.Fatalf("expected ErrBadAmount for negative, got %v", err)
	}
}

func TestAmount_Scan(t *testing.T) {
	var a Amount
	if err := a.Scan([]byte("42")); err != nil || a.String() != "42" {
		t.Fatalf("scan bytes: %v %s", err, a)
	}
	if err := a.Scan(int64(7)); err != nil || a.String() != "7" {
		t.Fatalf("scan int64: %v %s", err, a)
	}
	if err := a.Scan(nil); err != nil || !a.IsZero() {
		t.Fatalf("scan nil: %v %s", err, a)
	}
	if err := a.Scan(int64(-1)); err == nil {
		t.Fatalf("expected error for negative int64")
	}
	if err := a.Scan(3.5); err == nil {
		t.Fatalf("expected error for float")
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress(" 0x000000000000000000000000000000000000dead ")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if AddressKey(a) != "0x000000000000000000000000000000000000dEaD" {
		t.Fatalf("checksum form = %s", AddressKey(a))
	}
	for _, bad := range []string{"", "0x1234", "not-an-address"} {
		if _, err := ParseAddress(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseAddress(%q) err = %v", bad, err)
		}
	}
	if AddressKey(ZeroAddress) != "0x0000000000000000000000000000000000000000" {
		t.Fatalf("zero address key = %s", AddressKey(ZeroAddress))
	}
}
