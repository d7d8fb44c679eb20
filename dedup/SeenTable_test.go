/*
File Name:  SeenTable_test.go
Author:     Peter Kleissner
*/

package dedup

import (
	"testing"
	"time"

	"github.com/meshcore-dev/meshcore/protocol"
)

func TestCheckAndInsertDetectsDuplicate(t *testing.T) {
	table := NewSeenTable()
	defer table.Close()

	var key [protocol.PacketKeySize]byte
	key[0] = 0x01

	now := time.Now()
	if table.CheckAndInsert(key, now) {
		t.Fatal("first insertion must report unseen")
	}
	if !table.CheckAndInsert(key, now) {
		t.Fatal("second insertion of the same key must report seen")
	}
}

func TestCheckAndInsertExpiresAfterTTL(t *testing.T) {
	table := NewSeenTable()
	defer table.Close()

	var key [protocol.PacketKeySize]byte
	key[0] = 0x02

	now := time.Now()
	table.CheckAndInsert(key, now)

	later := now.Add(TTL + time.Second)
	if table.CheckAndInsert(key, later) {
		t.Fatal("entry past its TTL must be treated as unseen")
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	table := NewSeenTable()
	defer table.Close()

	now := time.Now()
	for i := 0; i < Capacity+10; i++ {
		var key [protocol.PacketKeySize]byte
		key[0] = byte(i)
		key[1] = byte(i >> 8)
		table.CheckAndInsert(key, now)
	}

	if table.Len() > Capacity {
		t.Fatalf("expected capacity to be enforced, got %d entries", table.Len())
	}

	var oldest [protocol.PacketKeySize]byte // key of i == 0, the first one inserted
	if table.Contains(oldest, now) {
		t.Fatal("expected the oldest entry to be evicted")
	}
}
