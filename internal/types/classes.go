package types

import "fmt"

// ClassDef is a type-class declaration: its parameters and the type
// expression of each member, per spec.md §4.3 "Class/instance dispatch".
type ClassDef struct {
	Name    string
	Params  []string
	Members map[string]Type // member name -> type, expressed over Params
}

// InstanceDef implements a class for concrete parameter types.
type InstanceDef struct {
	Class      string
	ParamTypes []Type
	Methods    map[string]Type // resolved method type per member name
}

// ClassEnv collects every class and instance declaration visible to a
// module, and resolves a call to `member` at callTypes to exactly one
// instance's method type (spec.md §4.3 "Class/instance dispatch").
type ClassEnv struct {
	Classes   map[string]*ClassDef
	Instances map[string][]*InstanceDef // class name -> instances
}

func NewClassEnv() *ClassEnv {
	return &ClassEnv{Classes: map[string]*ClassDef{}, Instances: map[string][]*InstanceDef{}}
}

func (ce *ClassEnv) AddClass(c *ClassDef)       { ce.Classes[c.Name] = c }
func (ce *ClassEnv) AddInstance(i *InstanceDef) { ce.Instances[i.Class] = append(ce.Instances[i.Class], i) }

// ResolveMember finds the class declaring `member`, then the set of
// instances whose ParamTypes unify (non-destructively, against a throw-
// away substitution) with argTypes. Exactly one match must succeed.
func (ce *ClassEnv) ResolveMember(aliases Aliases, member string, argTypes []Type) (*InstanceDef, error) {
	var owningClass *ClassDef
	for _, c := range ce.Classes {
		if _, ok := c.Members[member]; ok {
			owningClass = c
			break
		}
	}
	if owningClass == nil {
		return nil, fmt.Errorf("no class declares member %q", member)
	}

	var matches []*InstanceDef
	for _, inst := range ce.Instances[owningClass.Name] {
		if instanceMatches(aliases, inst, argTypes) {
			matches = append(matches, inst)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no instance found for %s.%s", owningClass.Name, member)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous instance for %s.%s", owningClass.Name, member)
	}
}

func instanceMatches(aliases Aliases, inst *InstanceDef, argTypes []Type) bool {
	n := len(inst.ParamTypes)
	if n > len(argTypes) {
		n = len(argTypes)
	}
	s := Subst{}
	for i := 0; i < n; i++ {
		var err error
		s, err = Unify(aliases, s, inst.ParamTypes[i], argTypes[i])
		if err != nil {
			return false
		}
	}
	return true
}
