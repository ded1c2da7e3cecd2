// Package zbxfake is an in-memory JSON-RPC server that speaks the subset of the
// monitoring API used by zbxsync. Objects are kept in a flat store keyed by
// entity and id; every scalar is returned as a string, the way the real API does.
package zbxfake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Object is one stored API object.
type Object = map[string]interface{}

// Call is one received request.
type Call struct {
	Method string
	Params json.RawMessage

	// Probe marks the write-readiness probe group calls.
	Probe bool
}

// Fault is an injected failure for the next call of a method.
type Fault struct {
	// Status, when non-zero, is returned as a bare HTTP status.
	Status int

	Code    int
	Message string
	Data    string
}

// HTTPFault fails a call at the transport level.
func HTTPFault(status int) Fault {
	return Fault{Status: status}
}

// RPCFault fails a call with a JSON-RPC error member.
func RPCFault(data string) Fault {
	return Fault{Code: -32500, Message: "Application error.", Data: data}
}

// idFields maps an entity to its id field. Results of create, update and
// delete are keyed by the id field plus "s".
var idFields = map[string]string{
	"hostgroup":     "groupid",
	"templategroup": "groupid",
	"proxy":         "proxyid",
	"host":          "hostid",
	"template":      "templateid",
	"hostinterface": "interfaceid",
	"item":          "itemid",
	"trigger":       "triggerid",
	"valuemap":      "valuemapid",
	"usermacro":     "hostmacroid",
	"graph":         "graphid",
	"dashboard":     "dashboardid",
	"mediatype":     "mediatypeid",
	"action":        "actionid",
	"user":          "userid",
	"usergroup":     "usrgrpid",
}

// uniqueFields are the fields the real API refuses to duplicate.
var uniqueFields = map[string][]string{
	"hostgroup":     {"name"},
	"templategroup": {"name"},
	"proxy":         {"name"},
	"host":          {"host"},
	"template":      {"host"},
	"item":          {"hostid", "key_"},
	"usermacro":     {"hostid", "macro"},
	"valuemap":      {"hostid", "name"},
	"graph":         {"hostid", "name"},
	"dashboard":     {"name"},
	"mediatype":     {"name"},
	"action":        {"name"},
}

var exprHost = regexp.MustCompile(`\(/([^/]+)/`)

// Server is the fake API.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	store    map[string]map[string]Object
	order    map[string][]string
	nextID   int
	calls    []Call
	faults   map[string][]Fault
	unready  int
	probes   map[string]bool
	tokens   map[string]string
	password map[string]string

	version string
}

// New starts a server seeded with the built-in objects of a fresh install:
// the Admin user and its group, the stock templates and the "Zabbix server" host.
func New(t testing.TB) *Server {
	s := NewEmpty()
	t.Cleanup(s.Close)

	grp := s.Seed("usergroup", Object{"name": "Zabbix administrators", "hostgroup_rights": []interface{}{}})
	s.SeedUser("Admin", "zabbix", grp)

	servers := s.Seed("hostgroup", Object{"name": "Zabbix servers"})
	tg := s.Seed("templategroup", Object{"name": "Templates/Operating systems"})
	linux := s.Seed("template", Object{"host": "Linux by Zabbix agent", "name": "Linux by Zabbix agent",
		"groups": []interface{}{Object{"groupid": tg}}})
	health := s.Seed("template", Object{"host": "Zabbix server health", "name": "Zabbix server health",
		"groups": []interface{}{Object{"groupid": tg}}})
	s.Seed("host", Object{
		"host":      "Zabbix server",
		"name":      "Zabbix server",
		"groups":    []interface{}{Object{"groupid": servers}},
		"templates": []interface{}{Object{"templateid": linux}, Object{"templateid": health}},
		"interfaces": []interface{}{Object{
			"type": 1, "main": 1, "useip": 1, "ip": "127.0.0.1", "dns": "", "port": "10050",
		}},
	})
	return s
}

// NewEmpty starts a server with an empty store. The caller closes it.
func NewEmpty() *Server {
	s := &Server{
		store:    make(map[string]map[string]Object),
		order:    make(map[string][]string),
		nextID:   10000,
		faults:   make(map[string][]Fault),
		probes:   make(map[string]bool),
		tokens:   make(map[string]string),
		password: make(map[string]string),
		version:  "7.0.0",
	}
	s.Server = httptest.NewServer(s)
	return s
}

// APIURL returns the JSON-RPC endpoint.
func (s *Server) APIURL() string {
	return s.URL + "/api_jsonrpc.php"
}

// SetVersion changes the apiinfo.version answer.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// Seed stores obj as if created through the API and returns its id.
func (s *Server) Seed(entity string, obj Object) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.create(entity, normalize(obj).(map[string]interface{}))
	if err != nil {
		panic(fmt.Sprintf("zbxfake: seed %s: %v", entity, err))
	}
	return ids[0]
}

// SeedUser stores a user that can log in, member of the given user groups.
func (s *Server) SeedUser(username, password string, usrgrpIDs ...string) string {
	grps := make([]interface{}, 0, len(usrgrpIDs))
	for _, id := range usrgrpIDs {
		grps = append(grps, Object{"usrgrpid": id})
	}
	id := s.Seed("user", Object{"username": username, "lang": "en_US", "usrgrps": grps, "medias": []interface{}{}})

	s.mu.Lock()
	s.password[username] = password
	s.mu.Unlock()
	return id
}

// Fail queues faults for the next calls of method, consumed in order.
func (s *Server) Fail(method string, faults ...Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = append(s.faults[method], faults...)
}

// Unavailable answers the next n requests of any method with 503.
func (s *Server) Unavailable(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unready = n
}

// Calls returns a copy of the received calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Methods returns the received method names in order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.Method)
	}
	return out
}

// Count returns how many calls of method were received.
func (s *Server) Count(method string) int {
	n := 0
	for _, m := range s.Methods() {
		if m == method {
			n++
		}
	}
	return n
}

// Mutations returns the create, update and delete calls that are not part of
// the write-readiness probe.
func (s *Server) Mutations() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Probe {
			continue
		}
		switch op(c.Method) {
		case "create", "update", "delete":
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the received calls.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Objects returns copies of every stored object of an entity, in creation order.
func (s *Server) Objects(entity string) []Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Object
	for _, id := range s.order[entity] {
		if obj, ok := s.store[entity][id]; ok {
			out = append(out, s.view(entity, obj))
		}
	}
	return out
}

// Find returns a copy of the first object of an entity whose field equals value.
func (s *Server) Find(entity, field, value string) (Object, bool) {
	for _, obj := range s.Objects(entity) {
		if str(obj[field]) == value {
			return obj, true
		}
	}
	return nil, false
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
		ID      int64           `json:"id"`
		Auth    string          `json:"auth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 0, -32700, "Parse error.", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	call := Call{Method: req.Method, Params: req.Params}
	call.Probe = s.isProbe(req.Method, req.Params)
	s.calls = append(s.calls, call)

	if s.unready > 0 {
		s.unready--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if queue := s.faults[req.Method]; len(queue) > 0 {
		f := queue[0]
		s.faults[req.Method] = queue[1:]
		if f.Status != 0 {
			w.WriteHeader(f.Status)
			return
		}
		writeError(w, req.ID, f.Code, f.Message, f.Data)
		return
	}

	if req.Method != "apiinfo.version" && req.Method != "user.login" {
		token := req.Auth
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if _, ok := s.tokens[token]; !ok {
			writeError(w, req.ID, -32602, "Invalid params.", "Not authorized.")
			return
		}
	}

	result, err := s.dispatch(req.Method, req.Params)
	if err != nil {
		writeError(w, req.ID, -32500, "Application error.", err.Error())
		return
	}

	raw, _ := json.Marshal(result)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"result":  json.RawMessage(raw),
		"id":      req.ID,
	})
}

func writeError(w http.ResponseWriter, id int64, code int, msg, data string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   map[string]interface{}{"code": code, "message": msg, "data": data},
		"id":      id,
	})
}

func op(method string) string {
	if i := strings.LastIndex(method, "."); i >= 0 {
		return method[i+1:]
	}
	return ""
}

func (s *Server) isProbe(method string, params json.RawMessage) bool {
	switch method {
	case "hostgroup.create":
		var p struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(params, &p)
		return strings.HasPrefix(p.Name, "__probe_")
	case "hostgroup.delete":
		var ids []string
		_ = json.Unmarshal(params, &ids)
		for _, id := range ids {
			if s.probes[id] {
				return true
			}
		}
	}
	return false
}

func (s *Server) dispatch(method string, raw json.RawMessage) (interface{}, error) {
	switch method {
	case "apiinfo.version":
		return s.version, nil
	case "user.login":
		var p struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if pw, ok := s.password[p.Username]; !ok || pw != p.Password {
			return nil, fmt.Errorf("Incorrect user name or password or account is temporarily blocked.")
		}
		s.nextID++
		token := fmt.Sprintf("%032x", s.nextID)
		s.tokens[token] = p.Username
		return token, nil
	}

	entity := strings.TrimSuffix(method, "."+op(method))
	if _, ok := idFields[entity]; !ok {
		return nil, fmt.Errorf("Incorrect method %q.", method)
	}

	params, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("Invalid parameter: %v", err)
	}

	switch op(method) {
	case "get":
		m, _ := params.(map[string]interface{})
		return s.get(entity, m), nil
	case "create":
		return s.each(entity, params, s.create)
	case "update":
		return s.each(entity, params, s.update)
	case "delete":
		return s.delete(entity, params)
	}
	return nil, fmt.Errorf("Incorrect method %q.", method)
}

func (s *Server) each(entity string, params interface{}, fn func(string, map[string]interface{}) ([]string, error)) (interface{}, error) {
	var objs []interface{}
	switch p := params.(type) {
	case []interface{}:
		objs = p
	default:
		objs = []interface{}{p}
	}

	var ids []string
	for _, o := range objs {
		m, ok := o.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Invalid parameter: object expected.")
		}
		got, err := fn(entity, m)
		if err != nil {
			return nil, err
		}
		ids = append(ids, got...)
	}
	return map[string]interface{}{idFields[entity] + "s": ids}, nil
}

func (s *Server) create(entity string, obj map[string]interface{}) ([]string, error) {
	if err := s.checkUnique(entity, obj, ""); err != nil {
		return nil, err
	}

	s.nextID++
	id := strconv.Itoa(s.nextID)
	obj[idFields[entity]] = id

	switch entity {
	case "hostgroup":
		if strings.HasPrefix(str(obj["name"]), "__probe_") {
			s.probes[id] = true
		}
	case "host":
		if ifaces, ok := obj["interfaces"].([]interface{}); ok {
			for _, i := range ifaces {
				iface, _ := i.(map[string]interface{})
				iface["hostid"] = id
				if _, err := s.create("hostinterface", iface); err != nil {
					return nil, err
				}
			}
		}
		delete(obj, "interfaces")
		obj["groups"] = idList(obj["groups"], "groupid")
		obj["templates"] = idList(obj["templates"], "templateid")
		if err := s.checkTemplates(obj["templates"].([]string)); err != nil {
			return nil, err
		}
	case "template":
		obj["groups"] = idList(obj["groups"], "groupid")
	case "item", "trigger":
		if _, ok := obj["templateid"]; !ok {
			obj["templateid"] = "0"
		}
		if entity == "trigger" {
			if m := exprHost.FindStringSubmatch(str(obj["expression"])); m != nil {
				obj["hostid"] = s.ownerID(m[1])
			}
		}
	case "graph":
		if items, ok := obj["gitems"].([]interface{}); ok && len(items) > 0 {
			gi, _ := items[0].(map[string]interface{})
			if item, ok := s.store["item"][str(gi["itemid"])]; ok {
				obj["hostid"] = item["hostid"]
			}
		}
	case "user":
		obj["medias"] = s.withMediaIDs(obj["medias"])
	}

	if s.store[entity] == nil {
		s.store[entity] = make(map[string]Object)
	}
	s.store[entity][id] = obj
	s.order[entity] = append(s.order[entity], id)
	return []string{id}, nil
}

func (s *Server) update(entity string, obj map[string]interface{}) ([]string, error) {
	idField := idFields[entity]
	id := str(obj[idField])
	cur, ok := s.store[entity][id]
	if !ok {
		return nil, fmt.Errorf("No permissions to referred object or it does not exist!")
	}
	if err := s.checkUnique(entity, obj, id); err != nil {
		return nil, err
	}

	for k, v := range obj {
		switch {
		case entity == "host" && k == "groups":
			cur["groups"] = idList(v, "groupid")
		case entity == "host" && k == "templates":
			ids := idList(v, "templateid")
			if err := s.checkTemplates(ids); err != nil {
				return nil, err
			}
			cur["templates"] = ids
		case entity == "host" && k == "templates_clear":
			drop := make(map[string]bool)
			for _, tid := range idList(v, "templateid") {
				drop[tid] = true
			}
			kept := []string{}
			for _, tid := range cur["templates"].([]string) {
				if !drop[tid] {
					kept = append(kept, tid)
				}
			}
			cur["templates"] = kept
		case entity == "template" && k == "groups":
			cur["groups"] = idList(v, "groupid")
		case entity == "user" && k == "medias":
			cur["medias"] = s.withMediaIDs(v)
		default:
			cur[k] = v
		}
	}
	return []string{id}, nil
}

func (s *Server) delete(entity string, params interface{}) (interface{}, error) {
	list, ok := params.([]interface{})
	if !ok {
		return nil, fmt.Errorf("Invalid parameter: array of ids expected.")
	}

	ids := make([]string, 0, len(list))
	for _, v := range list {
		id := str(v)
		if _, ok := s.store[entity][id]; !ok {
			return nil, fmt.Errorf("No permissions to referred object or it does not exist!")
		}
		delete(s.store[entity], id)
		ids = append(ids, id)

		if entity == "host" {
			for iid, iface := range s.store["hostinterface"] {
				if str(iface["hostid"]) == id {
					delete(s.store["hostinterface"], iid)
				}
			}
		}
	}
	return map[string]interface{}{idFields[entity] + "s": ids}, nil
}

func (s *Server) get(entity string, params map[string]interface{}) []Object {
	var linked map[string]bool
	if entity == "graph" {
		linked = s.linkedTemplates(strList(params["hostids"]))
	}

	out := []Object{}
	for _, id := range s.order[entity] {
		obj, ok := s.store[entity][id]
		if !ok || !matches(obj, params) {
			if !(ok && linked[str(obj["hostid"])] && matchesFilter(obj, params)) {
				continue
			}
		}
		out = append(out, s.view(entity, obj))
	}
	return out
}

func matches(obj Object, params map[string]interface{}) bool {
	for k, v := range params {
		if !strings.HasSuffix(k, "ids") {
			continue
		}
		field := strings.TrimSuffix(k, "s")
		if !contains(strList(v), str(obj[field])) {
			return false
		}
	}
	return matchesFilter(obj, params)
}

func matchesFilter(obj Object, params map[string]interface{}) bool {
	filter, _ := params["filter"].(map[string]interface{})
	for field, v := range filter {
		if !contains(strList(v), str(obj[field])) {
			return false
		}
	}
	return true
}

func (s *Server) linkedTemplates(hostIDs []string) map[string]bool {
	out := make(map[string]bool)
	for _, hid := range hostIDs {
		host, ok := s.store["host"][hid]
		if !ok {
			continue
		}
		tids, _ := host["templates"].([]string)
		for _, tid := range tids {
			out[tid] = true
		}
	}
	return out
}

// view renders a stored object the way get returns it.
func (s *Server) view(entity string, obj Object) Object {
	out := clone(obj).(map[string]interface{})

	switch entity {
	case "host":
		out["hostgroups"] = s.refs("hostgroup", obj["groups"], "groupid", "name")
		out["parentTemplates"] = s.refs("template", obj["templates"], "templateid", "host", "name")
		var ifaces []interface{}
		for _, iid := range s.order["hostinterface"] {
			iface, ok := s.store["hostinterface"][iid]
			if ok && str(iface["hostid"]) == str(obj["hostid"]) {
				ifaces = append(ifaces, clone(iface))
			}
		}
		if ifaces == nil {
			ifaces = []interface{}{}
		}
		out["interfaces"] = ifaces
		delete(out, "groups")
		delete(out, "templates")
	case "template":
		out["templategroups"] = s.refs("templategroup", obj["groups"], "groupid", "name")
		delete(out, "groups")
	case "user":
		var grps []interface{}
		for _, g := range idList(obj["usrgrps"], "usrgrpid") {
			grps = append(grps, s.refs("usergroup", []string{g}, "usrgrpid", "name")...)
		}
		out["usrgrps"] = grps
	}
	return out
}

func (s *Server) refs(entity string, ids interface{}, idField string, fields ...string) []interface{} {
	list, _ := ids.([]string)
	out := make([]interface{}, 0, len(list))
	for _, id := range list {
		ref := map[string]interface{}{idField: id}
		if obj, ok := s.store[entity][id]; ok {
			for _, f := range fields {
				ref[f] = obj[f]
			}
		}
		out = append(out, ref)
	}
	return out
}

func (s *Server) checkUnique(entity string, obj map[string]interface{}, self string) error {
	fields := uniqueFields[entity]
	if len(fields) == 0 {
		return nil
	}
	for id, other := range s.store[entity] {
		if id == self {
			continue
		}
		same := true
		for _, f := range fields {
			v, ok := obj[f]
			if !ok {
				v = s.store[entity][self][f]
			}
			if str(v) != str(other[f]) {
				same = false
				break
			}
		}
		if same {
			return fmt.Errorf("%s %q already exists.", entity, str(obj[fields[len(fields)-1]]))
		}
	}
	return nil
}

func (s *Server) checkTemplates(ids []string) error {
	for _, id := range ids {
		if _, ok := s.store["template"][id]; !ok {
			return fmt.Errorf("No permissions to referred object or it does not exist!")
		}
	}
	return nil
}

// ownerID returns the id of the host or template with the given technical name.
func (s *Server) ownerID(name string) string {
	for _, entity := range []string{"host", "template"} {
		for id, obj := range s.store[entity] {
			if str(obj["host"]) == name {
				return id
			}
		}
	}
	return ""
}

func (s *Server) withMediaIDs(v interface{}) []interface{} {
	list, _ := v.([]interface{})
	out := make([]interface{}, 0, len(list))
	for _, m := range list {
		media, _ := m.(map[string]interface{})
		if media == nil {
			continue
		}
		if str(media["mediaid"]) == "" {
			s.nextID++
			media["mediaid"] = strconv.Itoa(s.nextID)
		}
		out = append(out, media)
	}
	return out
}

// idList extracts ids from a list of {field: id} objects or plain ids.
func idList(v interface{}, field string) []string {
	out := []string{}
	switch list := v.(type) {
	case []string:
		return append(out, list...)
	case []interface{}:
		for _, e := range list {
			if m, ok := e.(map[string]interface{}); ok {
				out = append(out, str(m[field]))
				continue
			}
			out = append(out, str(e))
		}
	}
	return out
}

func strList(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, str(e))
		}
		return out
	default:
		return []string{str(t)}
	}
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func decode(raw json.RawMessage) (interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize turns every scalar into a string.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil, string:
		return t
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		var back interface{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&back); err != nil {
			return fmt.Sprint(t)
		}
		return normalize(back)
	}
}

func clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return t
	}
}

// Sorted returns the values of field across objs, sorted.
func Sorted(objs []Object, field string) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, str(o[field]))
	}
	sort.Strings(out)
	return out
}
