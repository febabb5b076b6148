package platform

import (
	"context"
	"errors"
	"testing"
)

func TestContext_Data(t *testing.T) {
	c := NewContext(nil)

	if _, ok := c.Data("climate_control"); ok {
		t.Error("Data() found value in empty context")
	}
	c.SetData("climate_control", 42)
	if v, ok := c.Data("climate_control"); !ok || v != 42 {
		t.Errorf("Data() = %v, %v", v, ok)
	}
	c.DeleteData("climate_control")
	if _, ok := c.Data("climate_control"); ok {
		t.Error("Data() found value after DeleteData")
	}
}

func TestContext_CloseRunsInReverse(t *testing.T) {
	c := NewContext(newTestHost())
	var order []string
	errB := errors.New("b failed")

	_ = c.OnClose("a", func(context.Context) error { order = append(order, "a"); return nil })
	_ = c.OnClose("b", func(context.Context) error { order = append(order, "b"); return errB })
	_ = c.OnClose("c", func(context.Context) error { order = append(order, "c"); return nil })

	err := c.Close(context.Background())
	if err == nil {
		t.Fatal("Close() error = nil, want b's failure")
	}
	if len(order) != 3 || order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("order = %v, want [c b a]", order)
	}

	if err := c.Close(context.Background()); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if err := c.OnClose("late", func(context.Context) error { return nil }); !errors.Is(err, ErrContextClosed) {
		t.Errorf("OnClose after Close = %v, want ErrContextClosed", err)
	}
}

func TestContext_CloseShutsDownHost(t *testing.T) {
	h := newTestHost()
	c := NewContext(h)
	e := &fakeEntity{id: "switch.climate"}
	_ = h.AddEntity(context.Background(), e)

	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !e.detached {
		t.Error("entity not detached on Close")
	}
}
