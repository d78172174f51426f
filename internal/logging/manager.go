package logging

import (
	"sort"
	"sync"
)

// ComponentLogger пишет через логгер по умолчанию, подставляя своё имя компонента.
// Получать заранее безопасно: вывод идёт в тот логгер, что установлен на момент записи.
type ComponentLogger struct {
	component string
}

var (
	componentsMu sync.Mutex
	components   = make(map[string]struct{})
)

// For возвращает логгер компонента и запоминает имя для ListComponents
func For(component string) ComponentLogger {
	componentsMu.Lock()
	components[component] = struct{}{}
	componentsMu.Unlock()

	return ComponentLogger{component: component}
}

// ListComponents возвращает отсортированный список компонентов, запрошенных через For
func ListComponents() []string {
	componentsMu.Lock()
	defer componentsMu.Unlock()

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name возвращает имя компонента
func (c ComponentLogger) Name() string { return c.component }

func (c ComponentLogger) Trace(format string, args ...interface{}) {
	current().logAs(c.component, TRACE, format, args...)
}

func (c ComponentLogger) Debug(format string, args ...interface{}) {
	current().logAs(c.component, DEBUG, format, args...)
}

func (c ComponentLogger) Info(format string, args ...interface{}) {
	current().logAs(c.component, INFO, format, args...)
}

func (c ComponentLogger) Warn(format string, args ...interface{}) {
	current().logAs(c.component, WARN, format, args...)
}

func (c ComponentLogger) Error(format string, args ...interface{}) {
	current().logAs(c.component, ERROR, format, args...)
}
