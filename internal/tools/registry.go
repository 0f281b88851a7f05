package tools

// Registry 是名字到工具的映射。同名注册时后者覆盖前者，
// 公布顺序保持首次注册的位置。
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register 注册工具，返回是否覆盖了已有的同名工具。
func (r *Registry) Register(t *Tool) bool {
	if t == nil || t.Name() == "" {
		return false
	}
	_, replaced := r.tools[t.Name()]
	if replaced {
		toolsLog.WithField("tool", t.Name()).Warn("tool registered twice; last registration wins")
	} else {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
	return replaced
}

func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names 返回按公布顺序排列的工具名。
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Specs 返回按公布顺序排列的工具描述。
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

func (r *Registry) Len() int { return len(r.order) }
