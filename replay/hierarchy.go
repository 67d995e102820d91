package replay

// Hierarchy maps internal class names to their superclass. It is used to
// decide which exception handler catches a thrown object.
type Hierarchy map[string]string

const (
	objectClass    = "java/lang/Object"
	throwableClass = "java/lang/Throwable"
)

// DefaultHierarchy returns the superclass chains of the common java.lang and
// java.io exception types.
func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		throwableClass:                             objectClass,
		"java/lang/Exception":                      throwableClass,
		"java/lang/Error":                          throwableClass,
		"java/lang/RuntimeException":               "java/lang/Exception",
		"java/lang/IllegalStateException":          "java/lang/RuntimeException",
		"java/lang/IllegalArgumentException":       "java/lang/RuntimeException",
		"java/lang/NullPointerException":           "java/lang/RuntimeException",
		"java/lang/ClassCastException":             "java/lang/RuntimeException",
		"java/lang/ArithmeticException":            "java/lang/RuntimeException",
		"java/lang/UnsupportedOperationException":  "java/lang/RuntimeException",
		"java/lang/NegativeArraySizeException":     "java/lang/RuntimeException",
		"java/lang/IndexOutOfBoundsException":      "java/lang/RuntimeException",
		"java/lang/ArrayIndexOutOfBoundsException": "java/lang/IndexOutOfBoundsException",
		"java/lang/ArrayStoreException":            "java/lang/RuntimeException",
		"java/io/IOException":                      "java/lang/Exception",
		"java/io/UncheckedIOException":             "java/lang/RuntimeException",
		"java/lang/AssertionError":                 "java/lang/Error",
	}
}

// IsAssignable reports whether class sub is super or one of its subclasses.
// Unknown classes are only assignable to themselves and java/lang/Object.
func (h Hierarchy) IsAssignable(sub, super string) bool {
	if super == objectClass {
		return true
	}
	seen := 0
	for c := sub; c != ""; c = h[c] {
		if c == super {
			return true
		}
		// Guard against cycles in user-supplied hierarchies.
		seen++
		if seen > len(h)+1 {
			return false
		}
	}
	return false
}

// IsThrowable reports whether class is a subclass of java/lang/Throwable.
func (h Hierarchy) IsThrowable(class string) bool {
	return h.IsAssignable(class, throwableClass)
}
