package upd

// MockDriver is a Driver built from function fields, following the
// teacher's MockBackend pattern: tests set only the hooks they care
// about and rely on permissive defaults for the rest.
type MockDriver struct {
	NameFunc       func() string
	CategoriesFunc func() []Category
	FlagsFunc      func() DriverFlags
	InitFunc       func(f *File) bool
	DeinitFunc     func(f *File)
	HandleFunc     func(req *Request) bool
}

func (m *MockDriver) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "upd.mock"
}

func (m *MockDriver) Categories() []Category {
	if m.CategoriesFunc != nil {
		return m.CategoriesFunc()
	}
	return []Category{CategoryStat}
}

func (m *MockDriver) Flags() DriverFlags {
	if m.FlagsFunc != nil {
		return m.FlagsFunc()
	}
	return 0
}

func (m *MockDriver) Init(f *File) bool {
	if m.InitFunc != nil {
		return m.InitFunc(f)
	}
	return true
}

func (m *MockDriver) Deinit(f *File) {
	if m.DeinitFunc != nil {
		m.DeinitFunc(f)
	}
}

func (m *MockDriver) Handle(req *Request) bool {
	if m.HandleFunc != nil {
		return m.HandleFunc(req)
	}
	req.complete(ResultOK)
	return true
}

// NewTestIso returns an Iso with a fresh Registry and the default
// logger, convenient for table-driven tests that don't care about
// logging configuration.
func NewTestIso() *Iso {
	return New(DefaultOptions())
}
