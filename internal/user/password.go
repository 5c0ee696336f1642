package user

import "golang.org/x/crypto/bcrypt"

// hashPassword produces a salted bcrypt digest. The digest is stored as an
// opaque string, so a future scheme change only touches this file.
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
