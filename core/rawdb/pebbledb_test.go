package rawdb

import "testing"

func TestPebbleDBRoundtrip(t *testing.T) {
	db, err := OpenPebbleDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebbleDB failed: %v", err)
	}
	defer db.Close()

	key, val := []byte("k1"), []byte("v1")
	if ok, _ := db.Has(key); ok {
		t.Fatal("key should not exist yet")
	}
	if err := db.Put(key, val); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q, want v1", got)
	}
	if err := db.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := db.Get(key); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPebbleDBBatch(t *testing.T) {
	db, err := OpenPebbleDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebbleDB failed: %v", err)
	}
	defer db.Close()

	batch := db.NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	if err := batch.Write(); err != nil {
		t.Fatalf("batch Write failed: %v", err)
	}
	if v, _ := db.Get([]byte("a")); string(v) != "1" {
		t.Fatal("batch write of key a did not take effect")
	}
	if v, _ := db.Get([]byte("b")); string(v) != "2" {
		t.Fatal("batch write of key b did not take effect")
	}
}

func TestPebbleDBPrefixIterator(t *testing.T) {
	db, err := OpenPebbleDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebbleDB failed: %v", err)
	}
	defer db.Close()

	db.Put([]byte("h\x00\x01"), []byte("header1"))
	db.Put([]byte("h\x00\x02"), []byte("header2"))
	db.Put([]byte("b\x00\x01"), []byte("body1"))

	it := db.NewIterator([]byte("h"))
	defer it.Release()

	count := 0
	for it.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 keys with prefix h, got %d", count)
	}
}
