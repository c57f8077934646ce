package categorizer

import "testing"

func TestCategoryMatchesByExtension(t *testing.T) {
	c := NewDefault()
	if got := c.Category("/home/user/movie.mp4"); got.Name != "Video" {
		t.Errorf("Category(movie.mp4) = %q, want Video", got.Name)
	}
	if got := c.Category("/home/user/README.md"); got.Name != "Documents" {
		t.Errorf("Category(README.md) = %q, want Documents", got.Name)
	}
}

func TestCategoryFallsBackForUnknownExtension(t *testing.T) {
	c := NewDefault()
	got := c.Category("/home/user/weird.xyzzy")
	if got.Name != "Other" {
		t.Errorf("Category(weird.xyzzy) = %q, want Other", got.Name)
	}
}

func TestCategoryIsCaseInsensitive(t *testing.T) {
	c := NewDefault()
	if got := c.Category("/home/user/PHOTO.JPG"); got.Name != "Images" {
		t.Errorf("Category(PHOTO.JPG) = %q, want Images", got.Name)
	}
}

func TestAddRuleOverridesExistingBucket(t *testing.T) {
	c := NewDefault()
	c.AddRule(".mp4", Category{Name: "Movies", Color: RGB{1, 2, 3}})
	got := c.Category("clip.mp4")
	if got.Name != "Movies" {
		t.Errorf("Category after AddRule = %q, want Movies", got.Name)
	}
}
