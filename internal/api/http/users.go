package http

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-survey/internal/service"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// GET /auth/me
func MeHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		u, err := d.Svc.Me(r.Context(), a)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// GET /users?role=student
func ListUsersHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		users, err := d.Svc.ListUsers(r.Context(), a, survey.Role(r.URL.Query().Get("role")))
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func GetUserHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "userID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		u, err := d.Svc.GetUser(r.Context(), a, id)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// PUT /users/{userID}  {"username", "full_name", "role", "active"?, "password"?}
func UpsertUserHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "userID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		var in service.UserInput
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		in.ID = id
		u, err := d.Svc.UpsertUser(r.Context(), a, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// PUT /users/{userID}/role  {"role": "mentor"}
func SetUserRoleHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "userID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		var req struct {
			Role survey.Role `json:"role"`
		}
		if err := decode(r, &req); err != nil {
			d.fail(w, r, err)
			return
		}
		u, err := d.Svc.SetUserRole(r.Context(), a, id, req.Role)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func DeactivateUserHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "userID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Svc.DeactivateUser(r.Context(), a, id); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePasswordHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		var req changePasswordReq
		if err := decode(r, &req); err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Svc.ChangePassword(r.Context(), a, req.OldPassword, req.NewPassword); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /users/bulk with a JSON array body, or multipart file= holding CSV or JSON.
func BulkUpsertUsersHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		rows, err := readUserRows(r)
		if err != nil {
			d.fail(w, r, survey.Validationf("%v", err))
			return
		}
		n, err := d.Svc.BulkUpsertUsers(r.Context(), a, rows)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": n})
	}
}

func readUserRows(r *http.Request) ([]service.UserInput, error) {
	var rows []service.UserInput
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			return nil, errors.New("expected JSON array or multipart file")
		}
		return rows, nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file required")
	}
	defer f.Close()

	// sniff CSV vs JSON by the first non-space byte
	br := bufio.NewReader(f)
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil, errors.New("empty file")
		}
		if b[0] != ' ' && b[0] != '\n' && b[0] != '\r' && b[0] != '\t' {
			break
		}
		_, _ = br.ReadByte()
	}
	if b, _ := br.Peek(1); b[0] == '[' {
		if err := json.NewDecoder(br).Decode(&rows); err != nil {
			return nil, errors.New("bad json")
		}
		return rows, nil
	}
	rows, err = parseCSV(br)
	if err != nil {
		return nil, errors.New("bad csv: " + err.Error())
	}
	return rows, nil
}

// parseCSV reads a header row with id and username, plus optional full_name,
// role, active and password columns.
func parseCSV(r io.Reader) ([]service.UserInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"id", "username"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var rows []service.UserInput
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(col(rec, "id"), 10, 64)
		if err != nil {
			return nil, errors.New("line " + strconv.Itoa(line) + ": id must be an integer")
		}
		row := service.UserInput{
			ID:       id,
			Username: col(rec, "username"),
			FullName: col(rec, "full_name"),
			Role:     survey.Role(strings.ToLower(col(rec, "role"))),
			Password: col(rec, "password"),
		}
		if v := col(rec, "active"); v != "" {
			active, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.New("line " + strconv.Itoa(line) + ": active must be true or false")
			}
			row.Active = &active
		}
		rows = append(rows, row)
	}
	return rows, nil
}
