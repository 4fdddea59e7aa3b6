package gi

import (
	"fmt"
	"reflect"
	"testing"
)

func TestSchedule(t *testing.T) {
	tests := []struct {
		cn        int
		wantOrder []int
		wantClear Slot
	}{
		{cn: 1, wantOrder: []int{0}, wantClear: SlotA},
		{cn: 2, wantOrder: []int{1, 0}, wantClear: SlotB},
		{cn: 4, wantOrder: []int{3, 2, 1, 0}, wantClear: SlotB},
		{cn: 7, wantOrder: []int{6, 5, 4, 3, 2, 1, 0}, wantClear: SlotA},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("cn=%d", tt.cn), func(t *testing.T) {
			passes := Schedule(tt.cn)

			order := make([]int, len(passes))
			for i, p := range passes {
				order[i] = p.Cascade
				if want := Slot(p.Cascade % 2); p.Read != want {
					t.Errorf("cascade %d reads %s, want %s", p.Cascade, p.Read, want)
				}
				if want := Slot((p.Cascade + 1) % 2); p.Write != want {
					t.Errorf("cascade %d writes %s, want %s", p.Cascade, p.Write, want)
				}
				if i > 0 && p.Read != passes[i-1].Write {
					t.Errorf("cascade %d reads %s but the previous pass wrote %s", p.Cascade, p.Read, passes[i-1].Write)
				}
			}
			if !reflect.DeepEqual(order, tt.wantOrder) {
				t.Errorf("order = %v, want %v", order, tt.wantOrder)
			}

			if got := ClearSlot(tt.cn); got != tt.wantClear {
				t.Errorf("ClearSlot = %s, want %s", got, tt.wantClear)
			}
			if passes[0].Read != ClearSlot(tt.cn) {
				t.Errorf("first pass reads %s, cleared slot is %s", passes[0].Read, ClearSlot(tt.cn))
			}
			if last := passes[len(passes)-1]; last.Write != FinalSlot() {
				t.Errorf("last pass writes %s, FinalSlot is %s", last.Write, FinalSlot())
			}
		})
	}
}

func TestScheduleEmpty(t *testing.T) {
	if got := Schedule(0); got != nil {
		t.Errorf("Schedule(0) = %v, want nil", got)
	}
}

func TestSlot(t *testing.T) {
	if FinalSlot() != SlotB {
		t.Errorf("FinalSlot = %s, want B", FinalSlot())
	}
	if SlotA.Other() != SlotB || SlotB.Other() != SlotA {
		t.Error("Other does not swap the pair")
	}
	for i := range 8 {
		if SlotOf(i).Other().Other() != SlotOf(i) {
			t.Errorf("SlotOf(%d).Other().Other() != SlotOf(%d)", i, i)
		}
	}
	// The composite of the default cascade count reads parity cn mod 2.
	if SlotOf(7) != FinalSlot() {
		t.Errorf("SlotOf(7) = %s, want the final slot", SlotOf(7))
	}
}
