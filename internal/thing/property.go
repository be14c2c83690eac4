package thing

// FuncProperty adapts plain getter/setter/delete closures to Property,
// the shape most small Thing implementations (including fixture.Light)
// reach for rather than hand-rolling the interface each time.
type FuncProperty struct {
	PropName string
	Get_     func() (interface{}, error)
	Set_     func(value interface{}) error // nil => not writable
	Delete_  func() error                  // nil => ErrNoDeleteHook
}

func (p *FuncProperty) Name() string { return p.PropName }

func (p *FuncProperty) Writable() bool { return p.Set_ != nil }

func (p *FuncProperty) Get() (interface{}, error) { return p.Get_() }

func (p *FuncProperty) Set(value interface{}) error {
	if p.Set_ == nil {
		return ErrNotWritable
	}
	return p.Set_(value)
}

func (p *FuncProperty) Delete() error {
	if p.Delete_ == nil {
		return ErrNoDeleteHook
	}
	return p.Delete_()
}

// FuncAction adapts a plain invoke closure to Action.
type FuncAction struct {
	ActionName string
	Invoke_    func(args []interface{}, kwargs map[string]interface{}) (interface{}, error)
}

func (a *FuncAction) Name() string { return a.ActionName }

func (a *FuncAction) Invoke(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return a.Invoke_(args, kwargs)
}
