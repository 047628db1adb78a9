// Package appctx holds application-wide state shared by screens: the
// signed-in user, preferred language, active screen, selected animal and
// dark mode. Each field has exactly one writer, expressed as a narrow
// writer type handed only to the component that owns the field.
package appctx

import (
	"slices"
	"sync"
)

// Role is the backend user role
type Role string

const (
	RoleZookeeper Role = "zookeeper"
	RoleVet       Role = "vet"
	RoleAdmin     Role = "admin"
	RoleOfficer   Role = "officer"
)

var observationRoles = []Role{RoleZookeeper, RoleVet, RoleAdmin}

// CanLogObservations reports whether the role may create daily logs.
func (r Role) CanLogObservations() bool {
	return slices.Contains(observationRoles, r)
}

// User is the signed-in backend user
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Animal is the selected-entity reference
type Animal struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species,omitempty"`
}

// Screen names the active navigation target
type Screen string

const (
	ScreenLogin     Screen = "login"
	ScreenDashboard Screen = "dashboard"
	ScreenDailyLog  Screen = "daily_log"
	ScreenSettings  Screen = "settings"
)

// Context is passed by reference to every component that reads shared state.
type Context struct {
	mu       sync.RWMutex
	user     *User
	language string
	screen   Screen
	animal   *Animal
	darkMode bool
}

// New returns a Context with the given language and no user.
func New(language string) *Context {
	if language == "" {
		language = "en"
	}
	return &Context{language: language, screen: ScreenLogin}
}

// Snapshot is an immutable copy of the context
type Snapshot struct {
	User     *User   `json:"user,omitempty"`
	Language string  `json:"language"`
	Screen   Screen  `json:"screen"`
	Animal   *Animal `json:"selected_animal,omitempty"`
	DarkMode bool    `json:"dark_mode"`
}

// Snapshot copies the current state.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{Language: c.language, Screen: c.screen, DarkMode: c.darkMode}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.animal != nil {
		a := *c.animal
		s.Animal = &a
	}
	return s
}

// User returns the signed-in user, if any.
func (c *Context) User() (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return User{}, false
	}
	return *c.user, true
}

// Language returns the preferred language code.
func (c *Context) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// SelectedAnimal returns the animal picked in the animal list, if any.
func (c *Context) SelectedAnimal() (Animal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.animal == nil {
		return Animal{}, false
	}
	return *c.animal, true
}

// Screen returns the active screen.
func (c *Context) Screen() Screen {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screen
}

// DarkMode returns the dark mode preference.
func (c *Context) DarkMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.darkMode
}

// AuthWriter is owned by login and logout.
type AuthWriter struct{ c *Context }

// SetUser records the signed-in user; nil signs out and clears the selection.
func (w AuthWriter) SetUser(u *User) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if u == nil {
		w.c.user = nil
		w.c.animal = nil
		w.c.screen = ScreenLogin
		return
	}
	cp := *u
	w.c.user = &cp
}

// SettingsWriter is owned by the settings screen. Last write wins.
type SettingsWriter struct{ c *Context }

func (w SettingsWriter) SetLanguage(lang string) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.c.language = lang
}

func (w SettingsWriter) SetDarkMode(on bool) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.c.darkMode = on
}

// NavigationWriter is owned by the router.
type NavigationWriter struct{ c *Context }

func (w NavigationWriter) SetScreen(s Screen) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	w.c.screen = s
}

// SelectionWriter is owned by the animal picker.
type SelectionWriter struct{ c *Context }

// Select records the chosen animal; nil clears it.
func (w SelectionWriter) Select(a *Animal) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if a == nil {
		w.c.animal = nil
		return
	}
	cp := *a
	w.c.animal = &cp
}

func (c *Context) AuthWriter() AuthWriter             { return AuthWriter{c} }
func (c *Context) SettingsWriter() SettingsWriter     { return SettingsWriter{c} }
func (c *Context) NavigationWriter() NavigationWriter { return NavigationWriter{c} }
func (c *Context) SelectionWriter() SelectionWriter   { return SelectionWriter{c} }
