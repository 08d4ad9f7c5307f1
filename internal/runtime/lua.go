package runtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// LuaRuntime executes lua snippets in-process on a gopher-lua VM. Each run
// gets a fresh state with only the base, string, table and math libraries;
// file, OS and code-loading primitives are stripped. The deadline is
// enforced through the VM's context hook, which aborts execution between
// instructions regardless of what the snippet does.
type LuaRuntime struct {
	outputLimit int
	logger      *zap.Logger
}

// NewLuaRuntime creates a LuaRuntime. outputLimit <= 0 uses the default cap.
func NewLuaRuntime(outputLimit int, logger *zap.Logger) *LuaRuntime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outputLimit <= 0 {
		outputLimit = DefaultOutputLimit
	}
	return &LuaRuntime{outputLimit: outputLimit, logger: logger}
}

func (r *LuaRuntime) Language() string { return "lua" }

// safeLuaLibs are the libraries opened in each fresh state.
var safeLuaLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// strippedGlobals are base-library entries that reach the host or
// reinterpret strings as code.
var strippedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "collectgarbage", "rawget",
	"rawset", "rawequal", "getmetatable", "setmetatable", "getfenv", "setfenv",
}

// Execute runs source with a hard deadline.
func (r *LuaRuntime) Execute(ctx context.Context, source string, timeout time.Duration, bindings map[string]any) (Result, error) {
	return r.run(ctx, source, clampTimeout(timeout), bindings, false)
}

// Eval evaluates a single expression under the tighter expression budget.
// Statements are rejected: the source must parse as `return (expr)`.
func (r *LuaRuntime) Eval(ctx context.Context, expr string) (Result, error) {
	return r.run(ctx, "return ("+strings.TrimSpace(expr)+")", ExprTimeout, nil, true)
}

func (r *LuaRuntime) run(ctx context.Context, source string, timeout time.Duration, bindings map[string]any, wantValue bool) (Result, error) {
	start := time.Now()

	out := newCappedBuffer(r.outputLimit)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range safeLuaLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range strippedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	// require resolves only the already-opened libraries.
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		switch name {
		case "string", "table", "math":
			L.Push(L.GetGlobal(name))
			return 1
		}
		L.RaiseError("module %q is not available in the sandbox", name)
		return 0
	}))

	// print writes into the capped buffer, mirroring lua's tab-separated
	// tostring formatting.
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		fmt.Fprintln(out, strings.Join(parts, "\t"))
		return 0
	}))

	for name, value := range bindings {
		L.SetGlobal(name, goToLua(L, value))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	L.SetContext(runCtx)

	type outcome struct {
		err  error
		vals []lua.LValue
	}
	done := make(chan outcome, 1)

	go func() {
		defer L.Close()
		fn, err := L.LoadString(source)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		L.Push(fn)
		err = L.PCall(0, lua.MultRet, nil)
		var vals []lua.LValue
		if err == nil && wantValue {
			for i := 1; i <= L.GetTop(); i++ {
				vals = append(vals, L.Get(i))
			}
		}
		done <- outcome{err: err, vals: vals}
	}()

	res := Result{Language: "lua"}

	select {
	case oc := <-done:
		res.Duration = time.Since(start)
		res.Stdout = out.String()
		res.Truncated = out.Truncated()
		if oc.err != nil {
			if runCtx.Err() != nil {
				res.Status = StatusTimeout
				res.ErrorDetail = fmt.Sprintf("execution exceeded %s", timeout)
				return res, nil
			}
			res.Status = StatusError
			res.ErrorDetail, res.Line = luaDiagnostic(oc.err)
			return res, nil
		}
		if wantValue {
			parts := make([]string, 0, len(oc.vals))
			for _, v := range oc.vals {
				parts = append(parts, luaValueString(v))
			}
			res.Stdout = strings.Join(parts, "\t")
		}
		res.Status = StatusSuccess
		return res, nil

	case <-runCtx.Done():
		// The context hook aborts the VM between instructions; the goroutine
		// closes the state on its way out. Partial output survives.
		res.Status = StatusTimeout
		res.Duration = time.Since(start)
		res.Stdout = out.String()
		res.Truncated = out.Truncated()
		res.ErrorDetail = fmt.Sprintf("execution exceeded %s", timeout)
		return res, nil
	}
}

var luaLineRe = regexp.MustCompile(`^<?\w*>?:(\d+):\s*`)

// luaDiagnostic extracts the message and source line from a lua error.
func luaDiagnostic(err error) (string, int) {
	msg := err.Error()
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		msg = apiErr.Object.String()
	}
	msg = strings.TrimSpace(msg)

	if m := luaLineRe.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return strings.TrimSpace(strings.TrimPrefix(msg, m[0])), line
	}
	return msg, 0
}

// luaValueString renders an expression result the way lua's print would.
func luaValueString(v lua.LValue) string {
	if v == lua.LNil {
		return "nil"
	}
	return v.String()
}

// goToLua converts a binding value into a lua value. Unsupported types fall
// back to their string form.
func goToLua(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		tbl := L.NewTable()
		for _, item := range v {
			tbl.Append(goToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for key, item := range v {
			tbl.RawSetString(key, goToLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}
