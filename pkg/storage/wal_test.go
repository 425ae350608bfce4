package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWALAppendIterateAndTruncate(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "neurogeo.wal")
	w, err := OpenWAL(walPath)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer w.Close()

	if err := w.Append(OpInsert, Point{ID: 1, X: 1.5, Y: -2}); err != nil {
		t.Fatalf("append insert: %v", err)
	}
	if err := w.Append(OpRemove, Point{ID: 1, X: 1.5, Y: -2}); err != nil {
		t.Fatalf("append remove: %v", err)
	}

	sizeBefore, err := w.Size()
	if err != nil {
		t.Fatalf("size before truncate: %v", err)
	}
	if sizeBefore != 2*RecordSize {
		t.Fatalf("expected wal size %d before truncate, got %d", 2*RecordSize, sizeBefore)
	}

	it, err := w.NewIterator()
	if err != nil {
		t.Fatalf("new iterator: %v", err)
	}
	rec1, err := it.Next()
	if err != nil {
		it.Close()
		t.Fatalf("first next: %v", err)
	}
	rec2, err := it.Next()
	if err != nil {
		it.Close()
		t.Fatalf("second next: %v", err)
	}
	if _, err := it.Next(); err != io.EOF {
		it.Close()
		t.Fatalf("expected EOF after two records, got %v", err)
	}
	it.Close()

	if rec1.Op != OpInsert || rec1.Point.ID != 1 || rec1.Point.X != 1.5 || rec1.Point.Y != -2 {
		t.Fatalf("unexpected first record: %+v", rec1)
	}
	if rec2.Op != OpRemove || rec2.Timestamp < rec1.Timestamp {
		t.Fatalf("unexpected second record: %+v", rec2)
	}

	if err := w.Truncate(); err != nil {
		t.Fatalf("truncate wal: %v", err)
	}
	sizeAfter, err := w.Size()
	if err != nil {
		t.Fatalf("size after truncate: %v", err)
	}
	if sizeAfter != 0 {
		t.Fatalf("expected wal size 0 after truncate, got %d", sizeAfter)
	}

	it2, err := w.NewIterator()
	if err != nil {
		t.Fatalf("new iterator after truncate: %v", err)
	}
	if _, err := it2.Next(); err != io.EOF {
		it2.Close()
		t.Fatalf("expected EOF on empty wal, got %v", err)
	}
	it2.Close()
}

func TestWALDetectsCorruption(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "neurogeo.wal")
	w, err := OpenWAL(walPath)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	if err := w.Append(OpInsert, Point{ID: 7, X: 3, Y: 4}); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	data, err := os.ReadFile(walPath)
	if err != nil {
		t.Fatalf("read wal: %v", err)
	}
	data[20] ^= 0xFF
	data = append(data, 1, 2, 3)
	if err := os.WriteFile(walPath, data, 0644); err != nil {
		t.Fatalf("write wal: %v", err)
	}

	w, err = OpenWAL(walPath)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	defer w.Close()

	it, err := w.NewIterator()
	if err != nil {
		t.Fatalf("new iterator: %v", err)
	}
	defer it.Close()

	if _, err := it.Next(); err != ErrCRCMismatch {
		t.Fatalf("expected crc mismatch, got %v", err)
	}
	if _, err := it.Next(); err != ErrCorrupted {
		t.Fatalf("expected torn tail, got %v", err)
	}
}
