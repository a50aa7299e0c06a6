package apitest

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitroom/internal/auth"
	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/realtime"
)

const invalidBody = "Invalid request body"

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ models.User) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, invalidBody)
		return
	}
	s.logger.Info("Login request received", "email", req.Email)

	user, err := s.authn.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.respondWithToken(w, http.StatusOK, *user)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request, _ models.User) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, invalidBody)
		return
	}
	s.logger.Info("Signup request received", "email", req.Email)

	user, err := s.authn.Register(r.Context(), req.Email, req.Name, req.Password)
	switch {
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, http.StatusConflict, "An account with this email already exists")
		return
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "")
		return
	}
	s.respondWithToken(w, http.StatusCreated, *user)
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, user models.User) {
	token, err := s.issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "")
		return
	}
	writeJSON(w, status, authResponse{Token: token, User: user})
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request, user models.User) {
	s.mu.Lock()
	var out []*models.Group
	for _, id := range s.order {
		g, ok := s.groups[id]
		if !ok {
			continue
		}
		if _, member := g.Member(user.ID); member {
			out = append(out, g.Clone())
		}
	}
	s.mu.Unlock()

	if len(out) == 0 {
		writeError(w, http.StatusNotFound, "No groups found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request, user models.User) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Group name is required")
		return
	}
	s.logger.Info("CreateGroup request received", "name", req.Name)

	s.mu.Lock()
	g := s.newGroupLocked(user, req.Name).Clone()
	s.mu.Unlock()

	s.logger.Info("Group created", "group_id", g.ID)
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) newGroupLocked(owner models.User, name string) *models.Group {
	g := &models.Group{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		CreatedBy: owner.ID,
		Members:   []models.Member{memberOf(owner)},
		Expenses:  []models.Expense{},
		Messages:  []models.ChatMessage{},
		Invites:   []models.Invite{},
	}
	s.groups[g.ID] = g
	s.order = append(s.order, g.ID)
	return g
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request, user models.User) {
	s.mu.Lock()
	g, status, msg := s.memberGroupLocked(r.PathValue("id"), user)
	if g != nil {
		g = g.Clone()
	}
	s.mu.Unlock()

	if g == nil {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request, user models.User) {
	id := r.PathValue("id")

	s.mu.Lock()
	g, status, msg := s.memberGroupLocked(id, user)
	if g != nil && g.CreatedBy != user.ID {
		g, status, msg = nil, http.StatusForbidden, "Only the group creator can delete the group"
	}
	if g != nil {
		delete(s.groups, id)
	}
	s.mu.Unlock()

	if g == nil {
		writeError(w, status, msg)
		return
	}
	s.logger.Info("Group deleted", "group_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Group deleted"})
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request, user models.User) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	key := strings.ToLower(req.Email)

	s.mu.Lock()
	if f, failing := s.memberFailures[key]; failing {
		s.mu.Unlock()
		writeError(w, f.status, f.message)
		return
	}
	account, _ := s.accounts.GetAccountByEmail(r.Context(), req.Email)

	g, status, msg := s.memberGroupLocked(r.PathValue("id"), user)
	var added *models.Member
	switch {
	case g == nil:
	case account != nil:
		if _, exists := g.Member(account.ID); exists {
			g, status, msg = nil, http.StatusBadRequest, "User is already a member of this group"
			break
		}
		m := memberOf(account.User)
		g.Members = append(g.Members, m)
		added = &m
	default:
		if invited(g, key) {
			g, status, msg = nil, http.StatusBadRequest, "User has already been invited"
			break
		}
		g.Invites = append(g.Invites, models.Invite{Email: req.Email, CreatedAt: time.Now().UTC()})
	}
	if g != nil {
		g = g.Clone()
	}
	s.mu.Unlock()

	if g == nil {
		writeError(w, status, msg)
		return
	}
	if added != nil {
		s.hub.broadcast(g.ID, realtime.EventMemberAdded, realtime.MemberEvent{GroupID: g.ID, UserID: added.ID, Name: added.Name, Email: added.Email})
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request, user models.User) {
	email := strings.ToLower(r.PathValue("email"))

	s.mu.Lock()
	g, status, msg := s.memberGroupLocked(r.PathValue("id"), user)
	var removed *models.Member
	if g != nil {
		for i, m := range g.Members {
			if strings.ToLower(m.Email) == email {
				removed = &g.Members[i]
				break
			}
		}
		if removed == nil {
			g, status, msg = nil, http.StatusNotFound, "Member not found"
		}
	}
	var event realtime.MemberEvent
	if g != nil {
		event = realtime.MemberEvent{GroupID: g.ID, UserID: removed.ID, Name: removed.Name, Email: removed.Email}
		g.Members = removeMember(g.Members, removed.ID)
		g = g.Clone()
	}
	s.mu.Unlock()

	if g == nil {
		writeError(w, status, msg)
		return
	}
	s.hub.broadcast(g.ID, realtime.EventMemberRemoved, event)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) cancelInvite(w http.ResponseWriter, r *http.Request, user models.User) {
	email := strings.ToLower(r.PathValue("email"))

	s.mu.Lock()
	g, status, msg := s.memberGroupLocked(r.PathValue("id"), user)
	if g != nil && !invited(g, email) {
		g, status, msg = nil, http.StatusNotFound, "Invite not found"
	}
	var cancelled string
	if g != nil {
		kept := g.Invites[:0]
		for _, inv := range g.Invites {
			if strings.ToLower(inv.Email) == email {
				cancelled = inv.Email
				continue
			}
			kept = append(kept, inv)
		}
		g.Invites = kept
		g = g.Clone()
	}
	s.mu.Unlock()

	if g == nil {
		writeError(w, status, msg)
		return
	}
	s.hub.broadcast(g.ID, realtime.EventInviteCancelled, realtime.InviteCancelled{GroupID: g.ID, Email: cancelled})
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) addExpense(w http.ResponseWriter, r *http.Request, user models.User) {
	var req struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		PaidBy      string          `json:"paidBy"`
		SplitAmong  []string        `json:"splitAmong"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, invalidBody)
		return
	}
	if req.Description == "" || !req.Amount.IsPositive() || len(req.SplitAmong) == 0 {
		writeError(w, http.StatusBadRequest, "Description, a positive amount and at least one member are required")
		return
	}
	groupID := r.PathValue("groupId")

	s.mu.Lock()
	g, status, msg := s.memberGroupLocked(groupID, user)
	var expense models.Expense
	if g != nil {
		payer, ok := g.Member(req.PaidBy)
		if !ok {
			g, status, msg = nil, http.StatusBadRequest, "Payer is not a member of this group"
		} else {
			expense = models.Expense{
				ID:          uuid.New().String(),
				Description: req.Description,
				Amount:      req.Amount,
				PaidBy:      models.RefMember(payer),
				CreatedAt:   time.Now().UTC(),
			}
			for _, id := range req.SplitAmong {
				if _, ok := g.Member(id); !ok {
					g, status, msg = nil, http.StatusBadRequest, "Split member is not in this group"
					break
				}
				expense.SplitAmong = append(expense.SplitAmong, models.RefID(id))
			}
		}
	}
	if g != nil {
		g.Expenses = append(g.Expenses, expense.Clone())
	}
	s.mu.Unlock()

	if g == nil {
		writeError(w, status, msg)
		return
	}
	s.logger.Info("Expense added", "group_id", groupID, "expense_id", expense.ID)
	s.hub.broadcast(groupID, realtime.EventExpenseAdded, realtime.ExpensePayload{GroupID: groupID, Expense: expense})
	writeJSON(w, http.StatusCreated, expense)
}

// memberGroupLocked returns the group if user may see it, or the error
// status and message.
func (s *Server) memberGroupLocked(id string, user models.User) (*models.Group, int, string) {
	g, ok := s.groups[id]
	if !ok {
		return nil, http.StatusNotFound, "Group not found"
	}
	if _, member := g.Member(user.ID); !member {
		return nil, http.StatusForbidden, "You are not a member of this group"
	}
	return g, 0, ""
}

func memberOf(u models.User) models.Member {
	return models.Member{ID: u.ID, Name: u.Name, Email: u.Email}
}

func invited(g *models.Group, email string) bool {
	for _, inv := range g.Invites {
		if strings.ToLower(inv.Email) == email {
			return true
		}
	}
	return false
}

func removeMember(members []models.Member, id string) []models.Member {
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
