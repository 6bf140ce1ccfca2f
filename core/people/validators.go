package people

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/mainino/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to personal attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"
	commonPasswords = make([]string, 0, 19727) // number of total pwds in /assets/common-passwords.txt.gz

	spaceRegex = regexp.MustCompile(`\s`)
)

// InitValidators registers people-specific validations and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newParentStructValidation, NewParent{})
	validate.RegisterStructValidation(resetPasswordStructValidation, ResetParentPassword{})

	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

// LoadCommonPasswords loads the common-passwords asset if present.
func LoadCommonPasswords(logger core.Logger) {
	pwdAssetPath := filepath.Join(core.Getwd(), "assets", "common-passwords.txt.gz")
	file, err := os.Open(pwdAssetPath)
	if err != nil {
		if logger != nil && !os.IsNotExist(err) {
			logger.Warn("loading common passwords", err)
		}
		return
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		if logger != nil {
			logger.Warn("loading common passwords", err)
		}
		return
	}
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		commonPasswords = append(commonPasswords, strings.TrimSpace(scanner.Text()))
	}
	sort.Strings(commonPasswords)
}

func (np *NewParent) Validate(validate *validator.Validate) error {
	np.Username = core.CleanString(np.Username, true /* lower */)
	np.Email = core.CleanString(np.Email, true /* lower */)
	return validate.Struct(np)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

func (data *ResetParentPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(data)
}

func newParentStructValidation(sl validator.StructLevel) {
	np := sl.Current().Interface().(NewParent)
	validatePassword(sl, np.Password, "Password", np.Username, np.Email, np.Name, np.Surname)
}

func resetPasswordStructValidation(sl validator.StructLevel) {
	data := sl.Current().Interface().(ResetParentPassword)
	validatePassword(sl, data.Password, "Password")
}

func validatePassword(sl validator.StructLevel, pwd, field string, attrs ...string) {
	if pwd == "" {
		return // `required` covers this
	}
	if len(pwd) < pwdMinLen {
		sl.ReportError(pwd, field, field, pwdMinLenTag, "")
	}
	if spaceRegex.MatchString(pwd) {
		sl.ReportError(pwd, field, field, pwdNoSpaceTag, "")
	}
	if isAllNumeric(pwd) {
		sl.ReportError(pwd, field, field, pwdNotAllNumTag, "")
	}
	if isTooSimilar(pwd, attrs) {
		sl.ReportError(pwd, field, field, pwdAttrSimTag, "")
	}
	if isCommon(pwd) {
		sl.ReportError(pwd, field, field, pwdNoCommonTag, "")
	}
}

func isAllNumeric(pwd string) bool {
	for _, r := range pwd {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isTooSimilar reports whether the password closely matches any personal attribute.
func isTooSimilar(pwd string, attrs []string) bool {
	lowPwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		matcher := difflib.NewMatcher([]string{lowPwd}, []string{attr})
		if matcher.QuickRatio() >= pwdMaxSim {
			return true
		}
	}
	return false
}

func isCommon(pwd string) bool {
	if len(commonPasswords) == 0 {
		return false
	}
	lowPwd := strings.ToLower(pwd)
	i := sort.SearchStrings(commonPasswords, lowPwd)
	return i < len(commonPasswords) && commonPasswords[i] == lowPwd
}
