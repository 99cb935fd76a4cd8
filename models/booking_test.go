package models

import "testing"

func TestBookingStatus_IsValid(t *testing.T) {
	for _, s := range []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled, BookingStatusFailed} {
		if !s.IsValid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	if BookingStatus("SHIPPED").IsValid() {
		t.Error("Expected SHIPPED to be invalid")
	}
	if BookingStatus("pending").IsValid() {
		t.Error("Expected lowercase pending to be invalid")
	}
}

func TestBookingStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   BookingStatus
		terminal bool
	}{
		{BookingStatusPending, false},
		{BookingStatusConfirmed, false},
		{BookingStatusCompleted, true},
		{BookingStatusCancelled, true},
		{BookingStatusFailed, true},
		{BookingStatus("UNKNOWN"), true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("(%s).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	all := []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled, BookingStatusFailed}

	allowed := map[BookingStatus]map[BookingStatus]bool{
		BookingStatusPending:   {BookingStatusConfirmed: true, BookingStatusCancelled: true, BookingStatusFailed: true},
		BookingStatusConfirmed: {BookingStatusCompleted: true, BookingStatusCancelled: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("(%s).CanTransitionTo(%s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestAuthorizeTransition(t *testing.T) {
	booking := &Booking{ID: 1, TouristID: 10, GuideID: 20}

	tests := []struct {
		name    string
		current BookingStatus
		target  BookingStatus
		role    Role
		actorID int
		wantErr bool
	}{
		{"guide confirms own booking", BookingStatusPending, BookingStatusConfirmed, RoleGuide, 20, false},
		{"other guide cannot confirm", BookingStatusPending, BookingStatusConfirmed, RoleGuide, 99, true},
		{"tourist cannot confirm", BookingStatusPending, BookingStatusConfirmed, RoleTourist, 10, true},
		{"admin confirms", BookingStatusPending, BookingStatusConfirmed, RoleAdmin, 99, false},
		{"guide completes confirmed booking", BookingStatusConfirmed, BookingStatusCompleted, RoleGuide, 20, false},
		{"cannot complete pending booking", BookingStatusPending, BookingStatusCompleted, RoleGuide, 20, true},
		{"tourist cancels own booking", BookingStatusPending, BookingStatusCancelled, RoleTourist, 10, false},
		{"tourist cancels confirmed booking", BookingStatusConfirmed, BookingStatusCancelled, RoleTourist, 10, false},
		{"other tourist cannot cancel", BookingStatusPending, BookingStatusCancelled, RoleTourist, 99, true},
		{"guide cannot cancel", BookingStatusPending, BookingStatusCancelled, RoleGuide, 20, true},
		{"admin cancels", BookingStatusConfirmed, BookingStatusCancelled, RoleAdmin, 99, false},
		{"admin fails a pending booking", BookingStatusPending, BookingStatusFailed, RoleAdmin, 99, false},
		{"guide cannot fail a booking", BookingStatusPending, BookingStatusFailed, RoleGuide, 20, true},
		{"tourist cannot fail a booking", BookingStatusPending, BookingStatusFailed, RoleTourist, 10, true},
		{"completed is terminal", BookingStatusCompleted, BookingStatusCancelled, RoleAdmin, 99, true},
		{"cancelled is terminal", BookingStatusCancelled, BookingStatusConfirmed, RoleAdmin, 99, true},
		{"failed is terminal", BookingStatusFailed, BookingStatusConfirmed, RoleAdmin, 99, true},
		{"confirmed cannot fail", BookingStatusConfirmed, BookingStatusFailed, RoleAdmin, 99, true},
		{"unknown target rejected", BookingStatusPending, BookingStatus("SHIPPED"), RoleAdmin, 99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizeTransition(tt.current, tt.target, tt.role, tt.actorID, booking)
			if (err != nil) != tt.wantErr {
				t.Errorf("AuthorizeTransition(%s -> %s, %s, actor %d) error = %v, wantErr %v",
					tt.current, tt.target, tt.role, tt.actorID, err, tt.wantErr)
			}
		})
	}
}
