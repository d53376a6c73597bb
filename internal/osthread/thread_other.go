//go:build !linux

package osthread

func gettid() int {
	return 0
}

func setName(string) error {
	return nil
}

func threadName() (string, error) {
	return "", nil
}

func setPriority(int, int) error {
	return nil
}

func getPriority(int) (int, error) {
	return 0, nil
}
