// Package hooks runs user Lua hooks after a conversion in a sandboxed state.
//
// A hooks file may define two global functions, both optional:
//
//	notes(summary)       -> list of strings appended to the report notes
//	output_name(summary) -> base name for batch output files
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"
)

const (
	notesHook      = "notes"
	outputNameHook = "output_name"
)

var ErrHook = errors.New("hook failed")

// Summary is what a hook sees of a finished conversion.
type Summary struct {
	Input              string
	Name               string
	Label              string
	TopicCount         int
	ActionCount        int
	HasLegacyVariables bool
	Topics             []string
	Flagged            int
}

// Hooks holds a compiled hooks file. Every call runs in a fresh Lua state, so
// a Hooks value is safe for concurrent use. A nil *Hooks runs nothing.
type Hooks struct {
	name   string
	proto  *lua.FunctionProto
	logger *zap.Logger
}

// Load compiles the hooks file at path.
func Load(path string, logger *zap.Logger) (*Hooks, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hooks: %w", err)
	}
	return Compile(path, string(src), logger)
}

func Compile(name, src string, logger *zap.Logger) (*Hooks, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hooks: %w", err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile hooks: %w", err)
	}
	return &Hooks{
		name:   name,
		proto:  proto,
		logger: logger.With(zap.String("component", "hooks"), zap.String("file", name)),
	}, nil
}

// Notes calls notes(summary). A missing function yields no notes.
func (h *Hooks) Notes(ctx context.Context, s Summary) ([]string, error) {
	if h == nil {
		return nil, nil
	}
	var notes []string
	err := h.call(ctx, notesHook, s, func(ret lua.LValue) error {
		switch v := ret.(type) {
		case *lua.LNilType:
			return nil
		case *lua.LTable:
			for i := 1; i <= v.Len(); i++ {
				item := v.RawGetInt(i)
				if !lua.LVCanConvToString(item) {
					return fmt.Errorf("note %d is a %s, not a string", i, item.Type())
				}
				notes = append(notes, lua.LVAsString(item))
			}
			return nil
		default:
			return fmt.Errorf("must return a list of strings, got %s", ret.Type())
		}
	})
	return notes, err
}

// OutputName calls output_name(summary). A missing function or a nil result
// yields "".
func (h *Hooks) OutputName(ctx context.Context, s Summary) (string, error) {
	if h == nil {
		return "", nil
	}
	var name string
	err := h.call(ctx, outputNameHook, s, func(ret lua.LValue) error {
		switch ret.Type() {
		case lua.LTNil:
			return nil
		case lua.LTString:
			name = strings.TrimSpace(lua.LVAsString(ret))
			return nil
		default:
			return fmt.Errorf("must return a string, got %s", ret.Type())
		}
	})
	return name, err
}

func (h *Hooks) call(ctx context.Context, fn string, s Summary, handle func(lua.LValue) error) error {
	L := h.newState()
	defer L.Close()
	L.SetContext(ctx)

	L.Push(L.NewFunctionFromProto(h.proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return fmt.Errorf("%w: loading %s: %v", ErrHook, h.name, err)
	}

	hook := L.GetGlobal(fn)
	if hook.Type() == lua.LTNil {
		return nil
	}
	if hook.Type() != lua.LTFunction {
		return fmt.Errorf("%w: %s is a %s, not a function", ErrHook, fn, hook.Type())
	}

	if err := L.CallByParam(lua.P{Fn: hook, NRet: 1, Protect: true}, summaryTable(L, s)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHook, fn, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	if err := handle(ret); err != nil {
		return fmt.Errorf("%w: %s %v", ErrHook, fn, err)
	}
	return nil
}

// newState opens only the safe libraries. Nothing can touch the file
// system, load code or observe randomness.
func (h *Hooks) newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	for _, name := range []string{"loadfile", "dofile", "load", "loadstring", "print", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	if math, ok := L.GetGlobal("math").(*lua.LTable); ok {
		L.SetField(math, "random", lua.LNil)
		L.SetField(math, "randomseed", lua.LNil)
	}

	L.SetGlobal("log", L.NewFunction(h.luaLog))
	return L
}

func (h *Hooks) luaLog(L *lua.LState) int {
	h.logger.Info(L.CheckString(1))
	return 0
}

func summaryTable(L *lua.LState, s Summary) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "input", lua.LString(s.Input))
	L.SetField(tbl, "name", lua.LString(s.Name))
	L.SetField(tbl, "label", lua.LString(s.Label))
	L.SetField(tbl, "topic_count", lua.LNumber(s.TopicCount))
	L.SetField(tbl, "action_count", lua.LNumber(s.ActionCount))
	L.SetField(tbl, "has_legacy_variables", lua.LBool(s.HasLegacyVariables))
	L.SetField(tbl, "flagged", lua.LNumber(s.Flagged))

	topics := L.NewTable()
	for _, t := range s.Topics {
		topics.Append(lua.LString(t))
	}
	L.SetField(tbl, "topics", topics)
	return tbl
}
