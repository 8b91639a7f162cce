package secrets

import (
	"math"
	"regexp"
	"strings"
	"sync"
)

// charRange is an inclusive byte range used by the character-class metric.
type charRange struct {
	min, max byte
}

var (
	hexShapeRegex    = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	base36ShapeRegex = regexp.MustCompile(`^[0-9A-Z]{16,}$`)

	hexCharClass = charRange{'0', '9'}
	base36Ranges = []charRange{{'0', '9'}, {'A', 'Z'}}
	base64Ranges = []charRange{{'0', '9'}, {'A', 'Z'}, {'a', 'z'}}

	bigramSet     map[[2]byte]struct{}
	bigramSetOnce sync.Once
)

// bigrams holds ~488 adjacent byte pairs common in source-code identifiers
// and base64-shaped tokens, used to distinguish random text from structured
// text under the bigram metric.
const bigramData = "er,te,an,en,ma,ke,10,at,/m,on,09,ti,al,io,.h,./,..,ra,ht,es,or,tm,pe,ml,re,in,3/,n3,0F,ok,ey,00,80,08,ss,07,15,81,F3,st,52,KE,To,01,it,2B,2C,/E,P_,EY,B7,se,73,de,VP,EV,to,od,B0,0E,nt,et,_P,A0,60,90,0A,ri,30,ar,C0,op,03,ec,ns,as,FF,F7,po,PK,la,.p,AE,62,me,F4,71,8E,yp,pa,50,qu,D7,7D,rs,ea,Y_,t_,ha,3B,c/,D2,ls,DE,pr,am,E0,oc,06,li,do,id,05,51,40,ED,_p,70,ed,04,02,t.,rd,mp,20,d_,co,ro,ex,11,ua,nd,0C,0D,D0,Eq,le,EF,wo,e_,e.,ct,0B,_c,Li,45,rT,pt,14,61,Th,56,sT,E6,DF,nT,16,85,em,BF,9E,ne,_s,25,91,78,57,BE,ta,ng,cl,_t,E1,1F,y_,xp,cr,4F,si,s_,E5,pl,AB,ge,7E,F8,35,E2,s.,CF,58,32,2F,E7,1B,ve,B1,3D,nc,Gr,EB,C6,77,64,sl,8A,6A,_k,79,C8,88,ce,Ex,5C,28,EA,A6,2A,Ke,A7,th,CA,ry,F0,B6,7/,D9,6B,4D,DA,3C,ue,n7,9C,.c,7B,72,ac,98,22,/o,va,2D,n.,_m,B8,A3,8D,n_,12,nE,ca,3A,is,AD,rt,r_,l-,_C,n1,_v,y.,yw,1/,ov,_n,_d,ut,no,ul,sa,CT,_K,SS,_e,F1,ty,ou,nG,tr,s/,il,na,iv,L_,AA,da,Ty,EC,ur,TX,xt,lu,No,r.,SL,Re,sw,_1,om,e/,Pa,xc,_g,_a,X_,/e,vi,ds,ai,==,ts,ni,mg,ic,o/,mt,gm,pk,d.,ch,/p,tu,sp,17,/c,ym,ot,ki,Te,FE,ub,nL,eL,.k,if,he,34,e-,23,ze,rE,iz,St,EE,-p,be,In,ER,67,13,yn,ig,ib,_f,.o,el,55,Un,21,fi,54,mo,mb,gi,_r,Qu,FD,-o,ie,fo,As,7F,48,41,/i,eS,ab,FB,1E,h_,ef,rr,rc,di,b.,ol,im,eg,ap,_l,Se,19,oS,ew,bs,Su,F5,Co,BC,ud,C1,r-,ia,_o,65,.r,sk,o_,ck,CD,Am,9F,un,fa,F6,5F,nk,lo,ev,/f,.t,sE,nO,a_,EN,E4,Di,AC,95,74,1_,1A,us,ly,ll,_b,SA,FC,69,5E,43,um,tT,OS,CE,87,7A,59,44,t-,bl,ad,Or,D5,A_,31,24,t/,ph,mm,f.,ag,RS,Of,It,FA,De,1D,/d,-k,lf,hr,gu,fy,D6,89,6F,4E,/k,w_,cu,br,TE,ST,R_,E8,/O"

func bigrams() map[[2]byte]struct{} {
	bigramSetOnce.Do(func() {
		parts := strings.Split(bigramData, ",")
		bigramSet = make(map[[2]byte]struct{}, len(parts))
		for _, p := range parts {
			if len(p) != 2 {
				continue
			}
			bigramSet[[2]byte{p[0], p[1]}] = struct{}{}
		}
	})
	return bigramSet
}

// detectBase infers the alphabet size for the given byte string: 16 for
// hex-shaped strings, 36 for uppercase+digit strings, 64 otherwise.
func detectBase(s []byte) float64 {
	switch {
	case hexShapeRegex.Match(s):
		return 16
	case base36ShapeRegex.Match(s):
		return 36
	default:
		return 64
	}
}

// randomnessProbability computes the combined probability that s arose from
// uniform sampling over its base alphabet. baseHint overrides auto-detection
// when non-zero. The function is pure; identical inputs always yield
// identical outputs.
func randomnessProbability(s []byte, baseHint int) float64 {
	base := float64(baseHint)
	if base == 0 {
		base = detectBase(s)
	}

	probability := distinctValuesProbability(s, base) * charClassProbability(s, base)
	if base == 64 {
		probability *= bigramProbability(s)
	}
	return probability
}

// isLikelySecret applies the main threshold plus the stricter no-digit rule.
func isLikelySecret(s []byte, minThreshold float64, baseHint int) bool {
	probability := randomnessProbability(s, baseHint)
	if probability < minThreshold {
		return false
	}

	containsDigit := false
	for _, b := range s {
		if b >= '0' && b <= '9' {
			containsDigit = true
			break
		}
	}
	if !containsDigit && probability < minThreshold*10 {
		return false
	}
	return true
}

func bigramProbability(s []byte) float64 {
	set := bigrams()
	count := 0
	for i := 0; i+1 < len(s); i++ {
		if _, ok := set[[2]byte{s[i], s[i+1]}]; ok {
			count++
		}
	}
	return binomialProbability(len(s), count, float64(len(set))/(64.0*64.0))
}

func charClassProbability(s []byte, base float64) float64 {
	if base == 16 {
		return charClassProbabilityAux(s, hexCharClass, base)
	}

	ranges := base36Ranges
	if base == 64 {
		ranges = base64Ranges
	}

	min := math.Inf(1)
	for _, r := range ranges {
		p := charClassProbabilityAux(s, r, base)
		if p < min {
			min = p
		}
	}
	return min
}

func charClassProbabilityAux(s []byte, r charRange, base float64) float64 {
	count := 0
	for _, b := range s {
		if b >= r.min && b <= r.max {
			count++
		}
	}
	numChars := float64(int(r.max)-int(r.min)+1) / base
	return binomialProbability(len(s), count, numChars)
}

// binomialProbability computes the tail probability of observing x or more
// (or x or fewer, whichever side x falls on) successes in n Bernoulli(p)
// trials.
func binomialProbability(n, x int, p float64) float64 {
	leftTail := float64(x) < float64(n)*p

	lo, hi := x, n
	if leftTail {
		lo, hi = 0, x
	}

	total := 0.0
	for i := lo; i <= hi; i++ {
		total += binomialTerm(n, i, p)
	}
	return total
}

func binomialTerm(n, i int, p float64) float64 {
	return factorial(n) / (factorial(n-i) * factorial(i)) * math.Pow(p, float64(i)) * math.Pow(1-p, float64(n-i))
}

func factorial(n int) float64 {
	result := 1.0
	for i := 2; i <= n; i++ {
		result *= float64(i)
	}
	return result
}

// distinctValuesProbability computes the probability of observing at most
// the seen number of distinct byte values under uniform sampling from an
// alphabet of size base.
func distinctValuesProbability(s []byte, base float64) float64 {
	totalPossible := math.Pow(base, float64(len(s)))
	distinct := countDistinctValues(s)

	moreExtreme := 0.0
	for i := 1; i <= distinct; i++ {
		moreExtreme += numPossibleOutcomes(len(s), i, int(base))
	}
	return moreExtreme / totalPossible
}

func countDistinctValues(s []byte) int {
	seen := make(map[byte]struct{})
	for _, b := range s {
		seen[b] = struct{}{}
	}
	return len(seen)
}

func numPossibleOutcomes(numValues, numDistinct, base int) float64 {
	result := float64(base)
	for i := 1; i < numDistinct; i++ {
		result *= float64(base - i)
	}
	return result * numDistinctConfigurations(numValues, numDistinct)
}

func numDistinctConfigurations(numValues, numDistinct int) float64 {
	if numDistinct == 1 || numDistinct == numValues {
		return 1
	}
	return numDistinctConfigurationsAux(numDistinct, 0, numValues-numDistinct)
}

// numDistinctConfigurationsAux counts the ways to distribute
// remainingValues extra occurrences across numPositions distinct-value
// slots, starting from slot index position. Exponential in the worst case
// but only ever called with small (<100 byte) matched secrets.
func numDistinctConfigurationsAux(numPositions, position, remainingValues int) float64 {
	if remainingValues == 0 {
		return 1
	}

	numConfigs := 0.0
	if position+1 < numPositions {
		numConfigs += numDistinctConfigurationsAux(numPositions, position+1, remainingValues)
	}
	numConfigs += float64(position+1) * numDistinctConfigurationsAux(numPositions, position, remainingValues-1)
	return numConfigs
}

// Validator applies the entropy model to candidate secret text.
type Validator struct {
	threshold float64
}

// NewValidator constructs a Validator with the given default threshold.
func NewValidator(threshold float64) *Validator {
	return &Validator{threshold: threshold}
}

// IsRandom reports whether value clears the randomness threshold. A
// per-pattern override, when non-nil, takes precedence over the
// Validator's default threshold.
func (v *Validator) IsRandom(value string, override *EntropyRequirement) bool {
	threshold := v.threshold
	baseHint := 0
	if override != nil {
		if override.MinProbability > 0 {
			threshold = override.MinProbability
		}
		baseHint = override.BaseHint
	}
	return isLikelySecret([]byte(value), threshold, baseHint)
}
