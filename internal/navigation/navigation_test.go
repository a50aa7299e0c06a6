package navigation

import "testing"

func TestRouter(t *testing.T) {
	r := NewRouter(RouteDashboard)

	var seen []string
	r.OnNavigate(func(route string) { seen = append(seen, route) })

	r.Navigate(GroupRoute("g1"))
	r.Navigate(RouteLogin)

	if r.Current() != RouteLogin {
		t.Errorf("Current = %q, want %q", r.Current(), RouteLogin)
	}
	want := []string{RouteDashboard, "/groups/g1", RouteLogin}
	history := r.History()
	if len(history) != len(want) {
		t.Fatalf("History = %v, want %v", history, want)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Errorf("History[%d] = %q, want %q", i, history[i], want[i])
		}
	}
	if len(seen) != 2 {
		t.Errorf("listener called %d times, want 2", len(seen))
	}
}

func TestGroupID(t *testing.T) {
	tests := []struct {
		route  string
		wantID string
		wantOK bool
	}{
		{"/groups/abc", "abc", true},
		{"/groups/", "", false},
		{RouteLogin, "", false},
	}
	for _, tt := range tests {
		id, ok := GroupID(tt.route)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("GroupID(%q) = %q, %v; want %q, %v", tt.route, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
