package appvolume

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"

	"github.com/phinze/mixdeck/internal/audio"
	"github.com/phinze/mixdeck/internal/render"
)

// IconSource provides the picture drawn for an application.
type IconSource interface {
	Icon(app string, size int) image.Image
}

// BadgeIcons draws a letter badge for every app.
type BadgeIcons struct{}

// Icon returns the badge for app.
func (BadgeIcons) Icon(app string, size int) image.Image {
	return render.Badge(audio.DisplayName(audio.Basename(app)), size)
}

// themePaths are tried in order below each data directory. %s is the icon
// name.
var themePaths = []string{
	"icons/hicolor/scalable/apps/%s.svg",
	"icons/hicolor/256x256/apps/%s.png",
	"icons/hicolor/128x128/apps/%s.png",
	"icons/hicolor/64x64/apps/%s.png",
	"icons/hicolor/48x48/apps/%s.png",
	"pixmaps/%s.svg",
	"pixmaps/%s.png",
}

// ThemeIcons looks application icons up in the freedesktop hicolor theme and
// falls back to a letter badge. Results are cached per app and size.
type ThemeIcons struct {
	dirs []string

	mu    sync.Mutex
	cache map[iconKey]image.Image
}

type iconKey struct {
	app  string
	size int
}

// NewThemeIcons searches the given data directories, or the XDG data
// directories when none are given.
func NewThemeIcons(dirs ...string) *ThemeIcons {
	if len(dirs) == 0 {
		dirs = append([]string{xdg.DataHome}, xdg.DataDirs...)
	}
	return &ThemeIcons{dirs: dirs, cache: make(map[iconKey]image.Image)}
}

// Icon returns a size x size image for app. It never returns nil.
func (t *ThemeIcons) Icon(app string, size int) image.Image {
	key := iconKey{app: app, size: size}

	t.mu.Lock()
	defer t.mu.Unlock()
	if img, ok := t.cache[key]; ok {
		return img
	}

	img := t.lookup(iconName(app), size)
	if img == nil {
		img = BadgeIcons{}.Icon(app, size)
	}
	t.cache[key] = img
	return img
}

// iconName maps a process name to a theme icon name: no directory, no .exe,
// lower case.
func iconName(app string) string {
	return strings.ToLower(audio.DisplayName(audio.Basename(app)))
}

func (t *ThemeIcons) lookup(name string, size int) image.Image {
	if name == "" {
		return nil
	}
	for _, dir := range t.dirs {
		for _, pattern := range themePaths {
			path := filepath.Join(dir, strings.Replace(pattern, "%s", name, 1))
			if img := loadIcon(path, size); img != nil {
				return img
			}
		}
	}
	return nil
}

func loadIcon(path string, size int) image.Image {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if strings.HasSuffix(path, ".svg") {
		img, err := render.SVGReader(f, size)
		if err != nil {
			return nil
		}
		return img
	}

	img, err := png.Decode(f)
	if err != nil {
		return nil
	}
	return render.Fit(img, size)
}
