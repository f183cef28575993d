package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(testLogger())
	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	bus.Publish(context.Background(), Change{FamilyID: "fam", Topics: []Topic{TopicInventory}})

	for name, ch := range map[string]<-chan Change{"a": a, "b": b} {
		select {
		case c := <-ch:
			if c.FamilyID != "fam" || !c.Has(TopicInventory) {
				t.Errorf("%s got %+v", name, c)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no change delivered", name)
		}
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(testLogger())
	ch, cancel := bus.Subscribe(1)

	if bus.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", bus.SubscriberCount())
	}
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", bus.SubscriberCount())
	}

	// Publishing after cancel must not panic.
	bus.Publish(context.Background(), Change{FamilyID: "fam"})
}

func TestSubscriptionMergesPerFamily(t *testing.T) {
	sub := newSubscription(1)

	if sub.push(Change{FamilyID: "second", Topics: []Topic{TopicShopping}}) {
		t.Error("first push should not merge")
	}
	sub.push(Change{FamilyID: "third", Topics: []Topic{TopicFamily}})
	if !sub.push(Change{FamilyID: "second", Topics: []Topic{TopicAlerts, TopicShopping}}) {
		t.Error("second push for a pending family should merge")
	}

	c, ok := sub.pop()
	if !ok || c.FamilyID != "second" {
		t.Fatalf("pop = %+v, %v, want second", c, ok)
	}
	if len(c.Topics) != 2 || !c.Has(TopicShopping) || !c.Has(TopicAlerts) {
		t.Errorf("topics = %v, want shopping and alerts", c.Topics)
	}
	if c, _ := sub.pop(); c.FamilyID != "third" {
		t.Errorf("pop = %+v, want third", c)
	}
	if _, ok := sub.pop(); ok {
		t.Error("queue should be empty")
	}
}

func TestBusKeepsChangesWhileSubscriberIsBusy(t *testing.T) {
	bus := NewBus(testLogger())
	ch, cancel := bus.Subscribe(1)
	defer cancel()
	ctx := context.Background()

	bus.Publish(ctx, Change{FamilyID: "first", Topics: []Topic{TopicInventory}})
	waitFor(t, func() bool { return len(ch) == 1 })

	bus.Publish(ctx, Change{FamilyID: "second", Topics: []Topic{TopicShopping}})
	bus.Publish(ctx, Change{FamilyID: "third", Topics: []Topic{TopicFamily}})
	bus.Publish(ctx, Change{FamilyID: "second", Topics: []Topic{TopicAlerts}})

	seen := map[string][]Topic{}
	var order []string
	for {
		select {
		case c := <-ch:
			order = append(order, c.FamilyID)
			seen[c.FamilyID] = append(seen[c.FamilyID], c.Topics...)
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}

	if len(order) == 0 || order[0] != "first" {
		t.Fatalf("order = %v, want first to lead", order)
	}
	second := Change{Topics: seen["second"]}
	if !second.Has(TopicShopping) || !second.Has(TopicAlerts) {
		t.Errorf("second topics = %v, want shopping and alerts", seen["second"])
	}
	if third := (Change{Topics: seen["third"]}); !third.Has(TopicFamily) {
		t.Errorf("third topics = %v, want family", seen["third"])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChangeHas(t *testing.T) {
	c := Change{Topics: []Topic{TopicAlerts, TopicShopping}}
	if !c.Has(TopicAlerts) || !c.Has(TopicShopping) {
		t.Error("expected alerts and shopping")
	}
	if c.Has(TopicInventory) {
		t.Error("did not expect inventory")
	}
}
